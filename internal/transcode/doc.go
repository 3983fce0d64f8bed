// Package transcode fits media files under a byte ceiling.
//
// A Pipeline probes the source, plans a video bitrate for the first rung of a
// compression Ladder, and runs two-pass encodes through a Runner, falling back
// across codec pairs and escalating to more aggressive rungs until the output
// lands within tolerance of the ceiling. Whatever happens, the caller gets a
// file back: the fitted artifact, the smallest attempt, or the original.
package transcode
