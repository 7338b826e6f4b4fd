// Package statements extracts structured records from large document sets by
// sending every document through a chat completion endpoint and turning the
// free-form replies into validated records.
//
// # Problem Statement
//
// Labelling tens of thousands of documents with a language model is mostly
// waiting on the network. The hard parts are the failure modes around it:
//
//   - Rate limits that punish every concurrent request at once
//   - Replies that are truncated, blocked by moderation or not parseable
//   - Documents that must be attempted a bounded number of times, never lost
//     and never collated twice
//
// The statements package solves this with a small concurrent engine:
//
//   - A shared Backoff that every request consults before sending
//   - A ChatClient (or GeminiClient) that performs one request and classifies
//     the result as an Outcome instead of retrying on its own
//   - A Coordinator that retries one item up to a fixed ceiling
//   - An Extractor that drains a work queue with N workers
//
// # Basic Usage
//
//	endpoint, _ := statements.PlatformEndpoint(statements.PlatformOpenAI, "gpt-4o-mini", nil)
//	formatter, _ := statements.NewTemplateFormatter(
//	    statements.WithTemplate("label", "Label the stance of:\n{{ text }}"),
//	    statements.WithRequiredFields("text"),
//	)
//	results := statements.NewResults(statements.WithIncludeFields("url"))
//	parser := statements.NewJSONParser(results, nil)
//
//	x, err := statements.NewExtractor(
//	    statements.SliceSource(rows),
//	    statements.NewChatClient(),
//	    endpoint, formatter, parser,
//	    statements.WithWorkers(8),
//	)
//	if err != nil {
//	    return err
//	}
//	stats, err := x.Run(ctx)
//	// results.Records() now holds one record per document id.
//
// # Outcomes and Retries
//
// Every attempt yields exactly one Outcome:
//
//	OutcomeSuccess         content extracted, backoff relaxed
//	OutcomeRateLimited     HTTP 429 or a RequestTimeOut error code, backoff escalated
//	OutcomeContentBlocked  moderation block, never retried
//	OutcomeMalformed       other status, undecodable body or empty content
//	OutcomeTransportError  network failure or timeout
//
// The Coordinator retries everything except content blocks, waiting a fixed
// RetryDelay between attempts. Replies that fail to parse or validate count
// as malformed. When all attempts fail the item is still collated, with an
// empty record and the error kept in its transcript.
//
// # Backoff
//
// The Backoff delay lives in [0, 32] seconds. A rate limit sets it to 2d+1, a
// success to d/2-1. Before every send the client sleeps the delay plus a
// random jitter of up to 300ms.
//
// # Prompts and Output
//
// TemplateFormatter renders Twig templates with the stick engine. JSONParser
// and PatternParser turn replies into records, optionally checked against a
// JSON Schema, and collate them into Results, which drops duplicate
// document ids with a warning. WriteOutputs persists results, the messages
// log and a sample file.
//
// # Dry Run
//
// Extractor.DryRun renders every prompt without sending anything and
// estimates the token volume and maximum number of calls of a run.
package statements
