// Package services defines the [AnalysisService] interface and implements it for the SportTrack.ai HTTP backend.
//
// # Endpoints
//
//	POST /upload            multipart field "video"      -> [models.UploadResult]
//	GET  /progress/{id}                                  -> [models.ProgressReport]
//	GET  /analyze/{id}                                   -> [models.Analysis]
//	GET  /parameters                                     -> [models.Parameters]
//	POST /parameters        JSON [models.Parameters]     -> ack
//	POST /reprocess/{id}                                 -> [models.ReprocessResult]
//	GET  /health
//	GET  /ws/progress/{id}  websocket                    -> stream of [models.ProgressReport]
//
// [APIService] performs raw requests and returns [APIResponse] values.
// [SportTrackService] builds the typed operations on top of it. [SportTrackService.StreamProgress] dials the
// websocket progress feed with gorilla/websocket; it is optional and not part of [AnalysisService].
//
// # Error Handling
//
// Transport failures are wrapped with a sentinel from the shared package:
//   - [shared.ErrUploadFailed] : POST /upload failed
//   - [shared.ErrProgressFailed] : progress could not be read
//   - [shared.ErrAnalysisFailed] : analysis could not be read
//   - [shared.ErrReprocessFailed] : reprocess request failed
//   - [shared.ErrAPIRequest] : parameter requests failed
//
// Non-2xx responses become a [StatusError] whose message is the backend's {"error": ...} field when present,
// so the orchestrator can surface it verbatim. [StatusError] unwraps to the same sentinels.
//
// Media URLs returned by the backend are usually server-relative; [SportTrackService.Probe] resolves them against the base URL.
package services
