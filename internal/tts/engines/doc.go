// Package engines contains the speech synthesizers. Piper runs offline as
// a subprocess and returns raw PCM for the audio player.
package engines
