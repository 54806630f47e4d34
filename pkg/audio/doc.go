// Package audio is the umbrella for the audio sub-packages:
//
//   - pcm: raw PCM frame formats and conversion
//   - wavio: WAV encoding and decoding of PCM frames
//   - player: gap-free playback scheduling with replay
//   - mic: PortAudio capture and playback devices
package audio
