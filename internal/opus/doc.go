// Package opus handles encoding, decoding, and sending of Opus audio frames
// for Discord voice playback.
//
// Frames travel in a minimal binary format: concatenated length-prefixed frames
// ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// Encode transcodes any audio source to Opus via FFmpeg and exposes the frames
// as a Stream. FrameReader reads length-prefixed frames back. Send hands one
// frame to a voice connection's send channel with a timeout.
package opus
