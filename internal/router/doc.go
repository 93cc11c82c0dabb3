// Package router builds tiered execution plans for the strategy fan-out.
//
// A plan has three tiers: primary strategies always run (in parallel by
// default); fallback strategies run only when the primary tier returns
// fewer hits than the early-stop threshold; enrichment strategies always
// run regardless of counts (graph expansion layered onto flow and code
// queries). The intent-specific plan applies only when the dominant
// intent's probability clears a confidence threshold; below it a
// balanced plan covering all strategies is used instead.
//
// The router plans; the orchestrator executes. Per-strategy timeouts and
// failure isolation are part of the plan so one slow or broken backend
// contributes zero hits for its tier without aborting the request.
package router
