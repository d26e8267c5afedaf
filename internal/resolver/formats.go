package resolver

import (
	"sort"
	"strconv"

	"snipserve/internal/model"
)

// BuildFormatList turns raw formats into the /api/formats listing: mp4 only,
// one entry per height (first seen wins), tallest first, then the synthetic
// "best" entry. Without a transcoder, formats lacking audio or video are
// dropped because they could not be merged.
func BuildFormatList(raw []RawFormat, transcoderAvailable bool) []model.FormatOption {
	seen := make(map[int]bool)
	out := make([]model.FormatOption, 0, len(raw)+1)
	for _, f := range raw {
		if f.Ext != "mp4" || f.Height <= 0 {
			continue
		}
		if !transcoderAvailable && (!f.HasAudio || !f.HasVideo) {
			continue
		}
		if seen[f.Height] {
			continue
		}
		seen[f.Height] = true
		size := model.UnknownSize
		if f.Size > 0 {
			size = model.FileSize(f.Size)
		}
		out = append(out, model.FormatOption{
			Height:   f.Height,
			Quality:  strconv.Itoa(f.Height) + "p",
			FileSize: size,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height > out[j].Height })
	return append(out, model.BestOption)
}
