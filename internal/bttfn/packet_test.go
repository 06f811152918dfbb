package bttfn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumEmptyBody(t *testing.T) {
	var b [PacketSize]byte
	// 43 bytes of 0x55 after XOR, truncated.
	assert.Equal(t, uint8(0x47), Checksum(&b))
}

func TestRequestRoundTrip(t *testing.T) {
	in := Request{Flags: ReqDefault | ReqDiscover, ID: 0xA1B2C3D4, Host: "sid", Device: DeviceSID, Hash: 162567}
	b := in.Encode()

	assert.Equal(t, Magic[:], b[:4])
	assert.Equal(t, uint8(Version), b[offVersion])
	assert.Equal(t, uint8(0x93), b[offFlags])
	assert.Equal(t, []byte{0xD4, 0xC3, 0xB2, 0xA1}, b[offID:offID+4])
	assert.Equal(t, uint8(DeviceSID), b[offDevice])
	assert.Zero(t, b[offHost+hostLen])

	p, err := Decode(b[:])
	require.NoError(t, err)
	assert.False(t, p.IsNotification())
	assert.False(t, p.IsResponse())
	assert.Equal(t, in, p.Request())
}

func TestRequestHostTruncated(t *testing.T) {
	b := Request{Flags: ReqDefault, ID: 1, Host: "averyveryverylongname"}.Encode()
	p, err := Decode(b[:])
	require.NoError(t, err)
	assert.Equal(t, "averyveryver", p.Host())
	assert.Zero(t, b[offHost+hostLen])
}

func TestResponseRoundTrip(t *testing.T) {
	in := Response{
		Flags:  ReqDefault | ReqCaps,
		ID:     77,
		Date:   [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		Speed:  -1,
		Status: StatusNightMode | StatusRotEnc,
		Caps:   CapKeypad,
	}
	b := in.Encode()
	p, err := Decode(b[:])
	require.NoError(t, err)
	require.True(t, p.IsResponse())
	assert.Equal(t, uint8(Version), p.Version())
	assert.Equal(t, in, p.Response())
}

func TestNotificationRoundTrip(t *testing.T) {
	tests := []Notification{
		{Kind: NotTimeTravel, Host: "tcd", Lead: 5000},
		{Kind: NotSIDCmd, Host: "tcd", Command: 123456},
		{Kind: NotSpeed, Host: "tcd", Speed: 42, SpdSrc: StatusRotEnc, Seq: 9},
		{Kind: NotAlarm, Host: "tcd"},
	}
	for _, in := range tests {
		t.Run(in.Kind.String(), func(t *testing.T) {
			b := in.Encode()
			p, err := Decode(b[:])
			require.NoError(t, err)
			require.True(t, p.IsNotification())
			assert.Equal(t, in, p.Notification())
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	for _, in := range []Command{
		{Kind: CmdTriggerTT, Host: "sid", Device: DeviceSID, Seq: 3},
		{Kind: CmdKeypadKey, Arg: 7, Host: "sid", Device: DeviceSID, Seq: 1},
		{Kind: CmdKeypadEnd, Host: "sid", Device: DeviceSID, Seq: 0xFFFFFFFF},
	} {
		b := in.Encode()
		p, err := Decode(b[:])
		require.NoError(t, err)
		got, ok := p.Command()
		require.True(t, ok)
		assert.Equal(t, in, got)
	}

	trig := Command{Kind: CmdTriggerTT}.Encode()
	assert.Equal(t, uint8(0x80), trig[offFlags])

	req := Request{Flags: ReqDefault, ID: 4}.Encode()
	p, err := Decode(req[:])
	require.NoError(t, err)
	_, ok := p.Command()
	assert.False(t, ok)
}

func TestDecodeRejectsCorruption(t *testing.T) {
	good := Notification{Kind: NotTimeTravel, Host: "tcd", Lead: 3000}.Encode()

	for i := offVersion; i < offChecksum; i++ {
		b := good
		b[i] ^= 0xFF
		_, err := Decode(b[:])
		assert.ErrorIs(t, err, ErrChecksum, "byte %d", i)
	}

	b := good
	b[offChecksum]++
	_, err := Decode(b[:])
	assert.ErrorIs(t, err, ErrChecksum)

	b = good
	b[1] = 'X'
	_, err = Decode(b[:])
	assert.ErrorIs(t, err, ErrMagic)

	_, err = Decode(good[:PacketSize-1])
	assert.ErrorIs(t, err, ErrShort)
}

func TestHostNameHash(t *testing.T) {
	assert.Equal(t, uint32(162567), HostNameHash("tcd"))
	assert.Equal(t, HostNameHash("tcd"), HostNameHash("TcD"))
	assert.Zero(t, HostNameHash(""))
}

func TestParseMaster(t *testing.T) {
	addr, name := ParseMaster("192.168.4.1", DefaultPort)
	require.NotNil(t, addr)
	assert.Equal(t, "192.168.4.1", addr.IP.String())
	assert.Equal(t, DefaultPort, addr.Port)
	assert.Empty(t, name)

	addr, name = ParseMaster(" timecircuits ", DefaultPort)
	assert.Nil(t, addr)
	assert.Equal(t, "timecircuits", name)

	addr, name = ParseMaster("", DefaultPort)
	assert.Nil(t, addr)
	assert.Empty(t, name)
}
