package baseline

// Bars is the number of columns on the indicator.
const Bars = 10

// MaxHeight is the tallest bar height a frame may carry.
const MaxHeight = 20

// Frame holds one target height per bar.
type Frame [Bars]uint8

const (
	StrictLen = 51 // rows in the strict decay table
	FreeLen   = 29 // rows in the free decay table
	MaxFree   = 19 // highest free baseline
	AmpSteps  = 16 // analyzer amplitude steps during acceleration
)

// strictSeq is the canonical acceleration pattern, bottom to top.
var strictSeq = [StrictLen]Frame{
	{1, 0, 0, 4, 0, 0, 0, 0, 0, 0},
	{2, 1, 0, 4, 0, 0, 0, 0, 0, 0},
	{3, 2, 0, 5, 0, 0, 0, 0, 0, 0},
	{4, 2, 0, 6, 0, 0, 0, 0, 0, 0},
	{4, 3, 0, 6, 0, 0, 0, 0, 0, 0},
	{4, 3, 0, 7, 0, 0, 0, 0, 0, 0},
	{4, 4, 0, 7, 0, 0, 0, 0, 0, 0},
	{4, 4, 0, 8, 0, 0, 0, 0, 0, 0},
	{4, 5, 0, 9, 0, 0, 0, 0, 0, 0},
	{4, 5, 0, 9, 0, 1, 0, 0, 0, 0},
	{5, 5, 0, 9, 0, 1, 0, 0, 0, 0},
	{5, 6, 0, 10, 0, 1, 0, 0, 0, 0},
	{5, 7, 0, 10, 0, 1, 0, 0, 0, 1},
	{5, 8, 0, 10, 0, 1, 0, 0, 0, 2},
	{6, 9, 0, 10, 0, 2, 0, 0, 0, 3},
	{6, 9, 0, 10, 0, 2, 1, 0, 0, 4},
	{6, 9, 0, 10, 0, 3, 1, 0, 0, 5},
	{6, 9, 0, 10, 0, 3, 2, 0, 0, 6},
	{6, 9, 0, 10, 0, 3, 3, 0, 0, 7},
	{6, 9, 0, 10, 0, 3, 4, 0, 0, 8},
	{6, 9, 0, 10, 0, 3, 4, 0, 0, 9},
	{7, 10, 0, 10, 0, 3, 4, 0, 0, 9},
	{7, 10, 0, 10, 0, 4, 5, 0, 1, 9},
	{8, 10, 0, 10, 0, 4, 6, 0, 1, 9},
	{8, 10, 0, 10, 0, 4, 7, 0, 2, 9},
	{8, 10, 0, 10, 0, 4, 8, 0, 2, 10},
	{8, 10, 0, 10, 0, 4, 8, 0, 3, 10},
	{8, 10, 0, 10, 0, 4, 9, 0, 3, 10},
	{8, 10, 0, 10, 0, 4, 10, 0, 3, 10},
	{9, 10, 0, 10, 0, 4, 10, 0, 4, 10},
	{9, 10, 0, 10, 0, 5, 10, 0, 5, 10},
	{9, 10, 0, 10, 0, 6, 10, 0, 6, 10},
	{9, 10, 0, 10, 0, 7, 10, 0, 7, 10},
	{10, 10, 0, 10, 0, 8, 10, 0, 8, 10},
	{10, 10, 0, 10, 0, 9, 10, 0, 9, 10},
	{10, 10, 1, 10, 0, 10, 10, 0, 10, 10},
	{10, 10, 1, 10, 0, 11, 10, 0, 11, 10},
	{10, 10, 2, 10, 0, 12, 10, 0, 12, 10},
	{11, 10, 2, 10, 0, 12, 10, 0, 13, 10},
	{12, 10, 3, 10, 0, 12, 10, 0, 14, 10},
	{13, 10, 3, 10, 0, 12, 10, 0, 15, 10},
	{14, 10, 3, 10, 0, 12, 10, 0, 16, 10},
	{15, 10, 4, 10, 0, 12, 10, 0, 17, 10},
	{16, 10, 4, 10, 0, 12, 10, 0, 18, 10},
	{17, 10, 4, 10, 0, 12, 10, 0, 19, 10},
	{18, 10, 6, 10, 0, 12, 10, 0, 20, 10},
	{19, 10, 6, 10, 0, 12, 10, 0, 20, 10},
	{19, 11, 6, 10, 0, 12, 11, 0, 20, 10},
	{20, 15, 7, 10, 0, 12, 15, 0, 20, 10},
	{20, 20, 10, 10, 5, 12, 20, 6, 20, 10},
	{20, 20, 13, 20, 20, 19, 20, 10, 20, 17},
}

// freeSeq is the shorter pattern used outside strict mode.
var freeSeq = [FreeLen]Frame{
	{0, 1, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 2, 0, 2, 0, 0, 1, 0, 1, 1},
	{2, 3, 0, 2, 0, 1, 2, 0, 1, 2},
	{3, 4, 0, 3, 0, 1, 3, 0, 2, 3},
	{4, 5, 0, 3, 0, 1, 4, 0, 2, 4},
	{5, 6, 0, 5, 0, 2, 6, 0, 2, 5},
	{6, 7, 0, 7, 0, 2, 7, 0, 2, 7},
	{7, 9, 0, 9, 0, 3, 8, 0, 3, 9},
	{8, 10, 0, 10, 0, 4, 9, 0, 3, 10},
	{8, 10, 0, 10, 0, 5, 9, 0, 4, 10},
	{8, 10, 0, 10, 0, 5, 9, 0, 5, 10},
	{8, 10, 0, 10, 0, 6, 9, 0, 6, 10},
	{8, 10, 0, 10, 0, 8, 9, 0, 7, 10},
	{8, 10, 0, 10, 0, 10, 9, 0, 8, 10},
	{8, 10, 0, 10, 0, 10, 9, 0, 9, 10},
	{10, 10, 1, 10, 0, 10, 10, 0, 10, 10},
	{10, 10, 1, 10, 0, 10, 10, 0, 10, 10},
	{10, 10, 1, 10, 0, 11, 10, 0, 11, 10},
	{10, 10, 2, 10, 0, 11, 10, 0, 12, 10},
	{11, 10, 3, 10, 0, 11, 10, 0, 13, 10},
	{12, 10, 3, 10, 0, 12, 10, 0, 14, 10},
	{13, 10, 3, 10, 0, 12, 10, 0, 15, 10},
	{14, 10, 4, 10, 0, 12, 10, 0, 16, 10},
	{15, 10, 4, 10, 0, 12, 10, 0, 17, 10},
	{16, 10, 4, 10, 0, 12, 10, 0, 18, 10},
	{19, 10, 6, 10, 0, 12, 10, 0, 20, 10},
	{20, 15, 7, 10, 0, 12, 15, 7, 20, 10},
	{20, 20, 10, 10, 5, 12, 20, 10, 20, 10},
	{20, 20, 13, 20, 20, 19, 20, 10, 20, 17},
}

// seqEntry maps a free baseline (0..20) to its starting row in freeSeq.
var seqEntry = [21]int{0, 1, 2, 3, 4, 5, 6, 6, 7, 7, 8, 15, 18, 19, 20, 21, 21, 22, 22, 23, 24}

// ampFactors scales the analyzer during acceleration and reentry.
var ampFactors = [AmpSteps]int{100, 110, 120, 130, 150, 170, 200, 250, 300, 400, 500, 800, 1000, 1500, 2000, 2000}

// backlotSeq is the fixed idle loop of the backlot mode.
var backlotSeq = [...]Frame{
	{6, 8, 6, 5, 8, 11, 11, 11, 12, 12},
	{10, 10, 10, 11, 11, 11, 11, 11, 12, 12},
	{14, 14, 15, 13, 13, 11, 11, 11, 12, 12},
	{14, 14, 15, 13, 13, 13, 13, 15, 14, 14},
	{14, 14, 15, 13, 13, 15, 16, 19, 16, 17},
	{16, 18, 17, 15, 17, 15, 16, 19, 16, 17},
	{16, 18, 17, 15, 17, 20, 18, 20, 20, 20},
	{19, 20, 20, 17, 19, 20, 18, 20, 20, 20},
	{16, 18, 17, 15, 17, 20, 18, 20, 20, 20},
	{16, 18, 17, 15, 17, 15, 16, 19, 16, 17},
	{14, 14, 15, 13, 13, 15, 16, 19, 16, 17},
	{14, 14, 15, 13, 13, 13, 13, 15, 14, 14},
	{14, 14, 15, 13, 13, 11, 11, 11, 12, 12},
	{10, 10, 10, 11, 11, 11, 11, 11, 12, 12},
}

// maxTunnelHeight caps each bar while in the tunnel.
var maxTunnelHeight = Frame{19, 19, 12, 19, 19, 18, 19, 9, 19, 16}

// mods are per-bar percentages applied to the free baseline. Row 20 is
// used for tunnel frames.
var mods = [21][Bars]int{
	{130, 90, 10, 80, 10, 110, 100, 15, 120, 90},
	{130, 90, 10, 80, 10, 110, 100, 15, 100, 90},
	{130, 90, 20, 80, 15, 110, 100, 15, 120, 100},
	{110, 100, 70, 80, 30, 50, 100, 15, 100, 110},
	{110, 110, 40, 90, 30, 50, 100, 15, 80, 100},
	{110, 110, 30, 120, 30, 50, 110, 15, 50, 100},
	{100, 100, 20, 120, 10, 50, 110, 20, 40, 110},
	{110, 120, 15, 110, 20, 40, 110, 18, 40, 100},
	{100, 100, 15, 110, 20, 50, 100, 15, 50, 90},
	{90, 110, 0, 100, 20, 50, 100, 15, 60, 100},
	{90, 100, 10, 100, 10, 60, 90, 15, 40, 100},
	{90, 100, 10, 100, 10, 90, 90, 15, 110, 100},
	{90, 90, 20, 90, 15, 100, 100, 50, 100, 90},
	{90, 90, 20, 90, 15, 100, 100, 50, 100, 90},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 80, 10, 80, 15, 90, 80, 50, 100, 80},
	{90, 70, 20, 70, 15, 70, 70, 40, 100, 70},
	{90, 70, 20, 70, 15, 70, 70, 40, 90, 70},
	{90, 60, 25, 60, 15, 80, 60, 40, 90, 60},
	{90, 90, 70, 100, 90, 110, 90, 60, 95, 80},
}

// MaskedTunnelText is the letter loop shown in the masked-text tunnel.
var MaskedTunnelText = []byte{36, 37, 38, 39}
