package probe

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"TransportBench/internal/model"
)

// Wire layout of an observation message:
//
//	message Observation {
//	  google.protobuf.Timestamp timestamp = 1;
//	  uint64 size = 2;
//	  Transport transport = 3;
//	}
//	message Transport {
//	  string src = 1;
//	  string dst = 2;
//	  uint32 seq = 3;
//	  uint32 ack = 4;
//	  uint32 flags = 5;
//	}
const (
	fieldTimestamp protowire.Number = 1
	fieldSize      protowire.Number = 2
	fieldTransport protowire.Number = 3

	fieldSrc   protowire.Number = 1
	fieldDst   protowire.Number = 2
	fieldSeq   protowire.Number = 3
	fieldAck   protowire.Number = 4
	fieldFlags protowire.Number = 5
)

// MarshalObservation encodes an observation in protobuf wire format.
func MarshalObservation(obs model.PacketObservation) ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(obs.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	b := make([]byte, 0, 64)
	b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(obs.Size))

	if tr := obs.Transport; tr != nil {
		var t []byte
		t = protowire.AppendTag(t, fieldSrc, protowire.BytesType)
		t = protowire.AppendString(t, tr.SrcAddr)
		t = protowire.AppendTag(t, fieldDst, protowire.BytesType)
		t = protowire.AppendString(t, tr.DstAddr)
		t = protowire.AppendTag(t, fieldSeq, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(tr.Seq))
		t = protowire.AppendTag(t, fieldAck, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(tr.Ack))
		t = protowire.AppendTag(t, fieldFlags, protowire.VarintType)
		t = protowire.AppendVarint(t, uint64(tr.Flags))

		b = protowire.AppendTag(b, fieldTransport, protowire.BytesType)
		b = protowire.AppendBytes(b, t)
	}
	return b, nil
}

// UnmarshalObservation decodes a message produced by MarshalObservation.
// Unknown fields are skipped.
func UnmarshalObservation(b []byte) (model.PacketObservation, error) {
	var obs model.PacketObservation
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return obs, fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldTimestamp && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return obs, fmt.Errorf("invalid timestamp: %w", protowire.ParseError(n))
			}
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return obs, fmt.Errorf("failed to unmarshal timestamp: %w", err)
			}
			obs.Timestamp = ts.AsTime()
			b = b[n:]
		case num == fieldSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return obs, fmt.Errorf("invalid size: %w", protowire.ParseError(n))
			}
			obs.Size = int(v)
			b = b[n:]
		case num == fieldTransport && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return obs, fmt.Errorf("invalid transport: %w", protowire.ParseError(n))
			}
			tr, err := unmarshalTransport(v)
			if err != nil {
				return obs, err
			}
			obs.Transport = tr
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return obs, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return obs, nil
}

func unmarshalTransport(b []byte) (*model.TransportInfo, error) {
	tr := &model.TransportInfo{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("invalid transport tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ == protowire.BytesType && (num == fieldSrc || num == fieldDst) {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("invalid address: %w", protowire.ParseError(n))
			}
			if num == fieldSrc {
				tr.SrcAddr = v
			} else {
				tr.DstAddr = v
			}
			b = b[n:]
			continue
		}
		if typ == protowire.VarintType && (num == fieldSeq || num == fieldAck || num == fieldFlags) {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("invalid transport field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldSeq:
				tr.Seq = uint32(v)
			case fieldAck:
				tr.Ack = uint32(v)
			case fieldFlags:
				tr.Flags = uint8(v)
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return nil, fmt.Errorf("invalid transport field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return tr, nil
}
