// Package tasks runs the SportTrack.ai upload widget: one [Session] of view state, the [Orchestrator] that
// drives an upload cycle through it, and the [Panel] that tunes detection parameters.
//
// # Upload Cycle
//
// [Orchestrator.HandleVideoUpload] walks one file through the states
//
//	Idle → Validating → SimulatingUpload → AwaitingServerAck → AnalysisRunning → Rendering → Idle | Error
//
//  1. Validating : [models.IsVideoFile] accepts by media type OR extension; a rejected file never reaches the network
//  2. SimulatingUpload : ten cosmetic 10% steps on the upload bar
//  3. AwaitingServerAck : one multipart POST /upload
//  4. AnalysisRunning : a [ProgressDriver] feeds the analysis bar, then GET /analyze
//     (a failed fetch renders [models.FallbackAnalysis])
//  5. Rendering : video sources, [models.Metrics], recommendations, optional media probe
//
// # Progress Reporting
//
// The [Session] publishes a [Snapshot] after every change. Sends use select with default, so a slow renderer
// drops intermediate frames instead of stalling a cycle. State transitions are also sent as [Event] values on
// the optional channel in [OrchestratorOpts].
//
// Two drivers exist. [PollDriver] is the default: it requests GET /progress at the poll interval through a
// rate limiter and hands over to [SimulationDriver] if the endpoint fails.
//
// # Cancellation
//
// Each cycle gets its own context and generation number. A new cycle, [Session.ResetAnalysis] or
// [Session.Cancel] cancels the old context; view mutations tagged with an older generation are dropped.
//
// # Timings
//
// Every delay lives in [Timings] and comes from the [analysis] section of the config file.
package tasks
