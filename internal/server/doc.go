// Package server implements a local stub of the SportTrack.ai analysis backend.
//
// The [Backend] answers the same routes as the real server so the client can be exercised without
// a pose-detection stack:
//
//	POST /upload              multipart "video", saved under <media>/uploads
//	GET  /progress/{id}       staged progress; 404 {"stage": "unknown"} for unknown ids
//	GET  /ws/progress/{id}    the same progress pushed over a websocket
//	GET  /analyze/{id}        fixed demo analysis, technique score nested under key_metrics
//	GET  /parameters          current detection parameters
//	POST /parameters          merge posted keys into the parameters
//	POST /reprocess/{id}      rewrite the processed copy
//	GET  /health
//	GET  /debug/video/{id}    file existence and sizes
//	GET  /static/uploads/{f}  and /static/processed/{f}
//
// "Processing" copies the original upload. Progress then advances through a few stages, one per
// StepDelay, and ends at stage "complete".
//
// Routing uses gorilla/mux behind [Router], which keeps a [Middleware] stack applied in reverse order
// (last added wraps first). [LogRequests] logs each request with charmbracelet/log.
package server
