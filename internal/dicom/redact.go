package dicom

import (
	"errors"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrEncapsulatedPixels is returned when burned-in text must be redacted
// from compressed pixel data, which is never written back unredacted.
var ErrEncapsulatedPixels = errors.New("dicom: cannot redact encapsulated pixel data")

// RedactRows blacks out the top rows of every frame, where ultrasound
// devices burn in patient text. It reports whether pixel data was present.
func (d *Dataset) RedactRows(redactRows int) (bool, error) {
	if redactRows <= 0 {
		return false, nil
	}
	pixelElem, err := d.Data.FindElementByTag(tag.PixelData)
	if err != nil || pixelElem.Value == nil {
		return false, nil
	}

	colsElem, err := d.Data.FindElementByTag(tag.Columns)
	if err != nil {
		return false, fmt.Errorf("dicom: no Columns tag found: %w", err)
	}
	samplesElem, _ := d.Data.FindElementByTag(tag.SamplesPerPixel)
	bitsAllocElem, _ := d.Data.FindElementByTag(tag.BitsAllocated)

	cols := getIntValue(colsElem)
	samples := getIntValue(samplesElem)
	if samples == 0 {
		samples = 1
	}
	bitsAlloc := getIntValue(bitsAllocElem)
	if bitsAlloc == 0 {
		bitsAlloc = 8
	}
	bytesPerSample := (bitsAlloc + 7) / 8

	switch v := pixelElem.Value.GetValue().(type) {
	case dicom.PixelDataInfo:
		if v.IsEncapsulated {
			return true, ErrEncapsulatedPixels
		}
		// frames are modified in place
		for _, fr := range v.Frames {
			if fr.Encapsulated {
				return true, ErrEncapsulatedPixels
			}
			redactFrame(fr, cols, redactRows)
		}
	case []byte:
		bytesPerRow := cols * samples * bytesPerSample
		n := min(redactRows*bytesPerRow, len(v))
		for i := 0; i < n; i++ {
			v[i] = 0
		}
	}
	return true, nil
}

// redactFrame zeroes the first redactRows rows of a native frame. Data is
// [][]int where outer is pixels, inner is samples.
func redactFrame(f *frame.Frame, cols, redactRows int) {
	if f.NativeData.Data == nil {
		return
	}
	n := min(redactRows*cols, len(f.NativeData.Data))
	for i := 0; i < n; i++ {
		for j := range f.NativeData.Data[i] {
			f.NativeData.Data[i][j] = 0
		}
	}
}

// getIntValue extracts an integer value from a DICOM element
func getIntValue(elem *dicom.Element) int {
	if elem == nil || elem.Value == nil {
		return 0
	}

	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case int:
		return v
	case []uint16:
		if len(v) > 0 {
			return int(v[0])
		}
	case uint16:
		return int(v)
	}
	return 0
}
