// Package models defines wire types and persistent entities for the sporttrack client.
//
// The package contains three categories of types:
//
// 1. Data Transfer Objects (DTOs): JSON payloads exchanged with the analysis backend
//   - [UploadResult] : Response of POST /upload
//   - [ProgressReport] : Server-reported analysis progress
//   - [Analysis] : Pose analysis result, with [FallbackAnalysis] as the placeholder payload
//   - [Parameters] : Tunable pose-detection parameters
//
// 2. Local values
//   - [VideoFile] : A candidate file, classified by [IsVideoFile]
//   - [Metrics] : Display strings derived from an [Analysis] by [ComputeMetrics]
//
// 3. Persistent Entities: Database-backed models with full lifecycle management
//   - [CycleRecord] : One upload-through-render cycle recorded by the optional journal
//
// Journaled entities implement [Record]; [Store] is the contract their SQLite repositories satisfy.
package models
