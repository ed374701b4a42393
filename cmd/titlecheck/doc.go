// Package main hosts the titlecheck entrypoint.
//
// Architecture overview:
//   - Input: a CSV link list (article_link, title by default) is parsed into ordered WorkItems. Rows missing either
//     field are skipped and counted.
//   - Scheduling: the scheduler runs at most checker.concurrency checks at once over one shared browser. Each check
//     opens an isolated page, classifies it, and closes it before the slot is released.
//   - Classification: a first h1 equal to the expected title (whitespace-normalized) matches; otherwise an exact
//     document title match; otherwise a title containing the site's base domain is treated as a bot wall.
//     Everything else fails.
//   - Evidence & sinks: failed items get a full-page screenshot (local dir, GCS or memory). Every item lands in
//     exactly one of success.csv, failure.csv or bot_blocked.csv. Rows are optionally mirrored to Postgres and
//     failures are announced on Pub/Sub.
//   - Plumbing: Viper loads config from file and TITLECHECK_* env vars; zap logs carry run_id and url; progress
//     events feed Prometheus, the run summary and the check_runs table; OpenTelemetry spans wrap every check.
//
// Quick checklist:
//   - Run locally: go run ./cmd/titlecheck run --config config.yaml
//   - Build a workbook from the sinks: go run ./cmd/titlecheck report --out report.xlsx
//   - Scrape /metrics and /v1/run while a run is in progress by setting metrics.listen_addr.
package main
