package tlv

import (
	"net"
	"testing"
)

func TestEncodeBGPRouterIDShape(t *testing.T) {
	// scenario 6 from spec.md §8: "bgp router-id 1.2.3.4" encodes as
	// group_id followed by a bare keyword element and a 4-byte ipv4
	// argument element.
	const groupID = 42
	elements := []Element{
		{ElementID: 1, Value: ElementValue{Kind: KindKeyword}},
		{ElementID: 2, Value: ElementValue{Kind: KindIPv4, IP: net.ParseIP("1.2.3.4")}},
	}

	frame := Encode(groupID, elements)

	gotGroup, raw, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gotGroup != groupID {
		t.Fatalf("group id: got %d want %d", gotGroup, groupID)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(raw))
	}
	if len(raw[0].Value) != 0 {
		t.Fatalf("keyword element should have 0-length value, got %d", len(raw[0].Value))
	}
	if len(raw[1].Value) != 4 {
		t.Fatalf("ipv4 element should be 4 bytes, got %d", len(raw[1].Value))
	}
	if string(raw[1].Value) != "\x01\x02\x03\x04" {
		t.Fatalf("ipv4 bytes wrong: % x", raw[1].Value)
	}
}

func TestRoundTripTypedElements(t *testing.T) {
	mac, _ := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	elements := []Element{
		{ElementID: 1, Value: ElementValue{Kind: KindStr, Str: "GE-1"}},
		{ElementID: 2, Value: ElementValue{Kind: KindU32, U32: 4294967295}},
		{ElementID: 3, Value: ElementValue{Kind: KindI32, I32: -42}},
		{ElementID: 4, Value: ElementValue{Kind: KindIPv4, IP: net.ParseIP("10.0.0.1")}},
		{ElementID: 5, Value: ElementValue{Kind: KindIPv6, IP: net.ParseIP("2001:db8::1")}},
		{ElementID: 6, Value: ElementValue{Kind: KindMac, Mac: mac}},
	}

	frame := Encode(7, elements)
	_, raw, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != len(elements) {
		t.Fatalf("got %d elements, want %d", len(raw), len(elements))
	}

	if ReadString(raw[0].Value) != "GE-1" {
		t.Fatalf("string round trip failed: %q", raw[0].Value)
	}
	if v, err := ReadUint32(raw[1].Value); err != nil || v != 4294967295 {
		t.Fatalf("uint32 round trip: %v %v", v, err)
	}
	if v, err := ReadInt32(raw[2].Value); err != nil || v != -42 {
		t.Fatalf("int32 round trip: %v %v", v, err)
	}
	if ip, err := ReadIPv4(raw[3].Value); err != nil || !ip.Equal(net.ParseIP("10.0.0.1")) {
		t.Fatalf("ipv4 round trip: %v %v", ip, err)
	}
	if ip, err := ReadIPv6(raw[4].Value); err != nil || !ip.Equal(net.ParseIP("2001:db8::1")) {
		t.Fatalf("ipv6 round trip: %v %v", ip, err)
	}
	if m, err := ReadMac(raw[5].Value); err != nil || m.String() != mac.String() {
		t.Fatalf("mac round trip: %v %v", m, err)
	}
}

func TestDecodeCorruptFrameAbortsWithNoPartialDelivery(t *testing.T) {
	// group_id + one element header claiming length 10 but only 2 bytes follow
	data := []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 10, 'h', 'i'}
	_, elements, err := Decode(data)
	if err == nil {
		t.Fatalf("expected CorruptFrameError")
	}
	if _, ok := err.(*CorruptFrameError); !ok {
		t.Fatalf("expected *CorruptFrameError, got %T", err)
	}
	if elements != nil {
		t.Fatalf("expected no partial elements delivered, got %v", elements)
	}
}

func TestEncodeUnknownKindFallsBackToRawCopy(t *testing.T) {
	v := ElementValue{Kind: Kind(99), Str: "fallback-text"}
	frame := Encode(1, []Element{{ElementID: 1, Value: v}})
	_, raw, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ReadString(raw[0].Value) != "fallback-text" {
		t.Fatalf("expected raw-copy fallback, got %q", raw[0].Value)
	}
}
