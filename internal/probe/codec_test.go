package probe

import (
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"TransportBench/internal/model"
)

func TestObservationCodec_WithTransport(t *testing.T) {
	in := model.PacketObservation{
		Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Size:      1514,
		Transport: &model.TransportInfo{
			SrcAddr: "10.0.0.1:40000",
			DstAddr: "10.0.0.2:5201",
			Seq:     4294967295,
			Ack:     17,
			Flags:   model.FlagSYN | model.FlagACK,
		},
	}
	data, err := MarshalObservation(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out, err := UnmarshalObservation(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !out.Timestamp.Equal(in.Timestamp) || out.Size != in.Size {
		t.Errorf("Header mismatch: got %+v", out)
	}
	if out.Transport == nil || *out.Transport != *in.Transport {
		t.Errorf("Transport mismatch: got %+v, want %+v", out.Transport, in.Transport)
	}
}

func TestObservationCodec_WithoutTransport(t *testing.T) {
	in := model.PacketObservation{Timestamp: time.Unix(1700000000, 5), Size: 1200}
	data, err := MarshalObservation(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out, err := UnmarshalObservation(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.Transport != nil {
		t.Errorf("Expected no transport, got %+v", out.Transport)
	}
	if !out.Timestamp.Equal(in.Timestamp) || out.Size != 1200 {
		t.Errorf("Mismatch: got %+v", out)
	}
}

func TestObservationCodec_SkipsUnknownFields(t *testing.T) {
	data, _ := MarshalObservation(model.PacketObservation{Timestamp: time.Unix(1, 0), Size: 10})
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "future field")

	out, err := UnmarshalObservation(data)
	if err != nil {
		t.Fatalf("Unknown field should be skipped: %v", err)
	}
	if out.Size != 10 {
		t.Errorf("Expected size 10, got %d", out.Size)
	}
}

func TestObservationCodec_Truncated(t *testing.T) {
	data, _ := MarshalObservation(model.PacketObservation{
		Timestamp: time.Unix(1, 0),
		Size:      10,
		Transport: &model.TransportInfo{SrcAddr: "a", DstAddr: "b"},
	})
	if _, err := UnmarshalObservation(data[:len(data)-3]); err == nil {
		t.Error("Expected an error for a truncated message")
	}
}
