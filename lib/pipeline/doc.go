// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline tracks skill-pipeline runs: one artifact threaded
// through the fixed stage order learning → building → pre_load →
// evaluation → skill_manage.
//
// The coordinator consumes PipelineStageResult events and decides, per
// run, whether the result advances the run, terminates it, or is a
// stale duplicate. The bus delivers at least once and agents may be
// slow or doubled, so three outcomes are distinguished: an advancing
// result (produces the PipelineNext for the following stage), a
// terminal result (failed, timed_out, or completion of the final
// stage), and a stale or redelivered result, which is discarded
// without error. Results that would corrupt a terminal run are a
// state violation and are rejected with an error for the sender.
package pipeline
