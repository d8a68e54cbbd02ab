// Package gaze owns the raw-sample end of the reading-mode pipeline.
//
// Responsibilities: parsing tracker messages into samples, the sliding
// point window, and fixation extraction (open, grow, outlier rejection,
// close, forced close on scroll or task end).
// Key types: Sample, Fixation, Displacement, Tracker.
//
// Dependency rule: gaze depends only on internal/config. Classification of
// the displacement between fixations lives in internal/saccade.
package gaze
