// Package ui renders psuctl terminal output with Lipgloss and Bubble Tea.
//
// One-shot commands print a Header before talking to the device and a
// Result box afterwards. Listings such as the field catalog use Table, and
// raw frames are shown with RenderFrame.
//
// There are two interactive views. ProfileForm walks through a new
// connection profile for 'psuctl config wizard'. WatchModel polls a
// SampleFunc on a fixed interval and redraws voltage, current, power and a
// gauge of voltage against the device maximum. The model knows nothing
// about either wire protocol; the caller converts device records into a
// Sample.
//
// Logging stays silent unless PSULINK_LOG_LEVEL is set, so zap output does
// not tear the rendered view.
package ui
