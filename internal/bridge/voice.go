package bridge

import "fmt"

// Voice is one fixed output identity: a note on a channel, driven by one
// record field.
type Voice struct {
	Channel uint8
	Key     uint8
	Field   int
}

// Voices are the two fixed output voices. Field 0 drives C (60) and field 1
// drives G (67), both on the first channel.
var Voices = [2]Voice{
	{Channel: 0, Key: 60, Field: 0},
	{Channel: 0, Key: 67, Field: 1},
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func (v Voice) String() string {
	return pitchName(int(v.Key))
}

func pitchName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprintf("?\"%d\"", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}
