// Package session wires the reading-mode pipeline together.
//
// A Session owns one tracker, classifier and detector and serialises every
// entry point (gaze samples, scrolls, API commands, task timers) behind a
// single mutex, so a sample's cascade through
//
//	gaze.Tracker -> saccade.Classifier -> mode.Detector
//
// always completes before the next input is processed. Observers are called
// synchronously while the lock is held; they must not call back into the
// session and should hand work off to their own goroutines.
package session
