package lnwire

import (
	"io"

	"github.com/lightningnetwork/inboundfee/fn"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// FeeRecordType is the type used in the channel update extra data to
	// carry the inbound fee of the channel.
	FeeRecordType tlv.Type = 55555

	// feeRecordSize is the encoded size of an inbound fee: two 32 bit
	// values.
	feeRecordSize = 8
)

// OutboundFee describes the fee a node charges for forwarding over one of its
// channels, as advertised in the channel update.
type OutboundFee struct {
	// BaseFee is the per-htlc fee charged, in milli-satoshis.
	BaseFee uint32

	// FeeRate is the fee rate that will be charged per millionth of the
	// forwarded amount.
	FeeRate uint32
}

// Fee is the inbound fee of a channel: the fee charged for htlcs that arrive
// over it. Both fields may be negative, in which case the inbound fee acts as a
// discount on the outbound fee of the next channel.
type Fee struct {
	// BaseFee is the per-htlc inbound fee, in milli-satoshis.
	BaseFee int32

	// FeeRate is the inbound fee rate in parts per million.
	FeeRate int32
}

// Record returns a TLV record that can be used to encode/decode the inbound
// fee.
//
// Note: implements the RecordProducer interface.
func (f *Fee) Record() tlv.Record {
	return tlv.MakeStaticRecord(
		FeeRecordType, f, feeRecordSize, feeEncoder, feeDecoder,
	)
}

// feeEncoder is a custom TLV encoder for the inbound fee record. The signed
// values are written as their two's complement uint32 representation.
func feeEncoder(w io.Writer, val interface{}, buf *[8]byte) error {
	v, ok := val.(*Fee)
	if !ok {
		return tlv.NewTypeForEncodingErr(val, "lnwire.Fee")
	}

	baseFee := uint32(v.BaseFee)
	if err := tlv.EUint32(w, &baseFee, buf); err != nil {
		return err
	}

	feeRate := uint32(v.FeeRate)

	return tlv.EUint32(w, &feeRate, buf)
}

// feeDecoder is a custom TLV decoder for the inbound fee record.
func feeDecoder(r io.Reader, val interface{}, buf *[8]byte, l uint64) error {
	v, ok := val.(*Fee)
	if !ok || l != feeRecordSize {
		return tlv.NewTypeForDecodingErr(
			val, "lnwire.Fee", l, feeRecordSize,
		)
	}

	var baseFee, feeRate uint32
	if err := tlv.DUint32(r, &baseFee, buf, 4); err != nil {
		return err
	}
	if err := tlv.DUint32(r, &feeRate, buf, 4); err != nil {
		return err
	}

	v.BaseFee = int32(baseFee)
	v.FeeRate = int32(feeRate)

	return nil
}

// EncodeInboundFee writes a tlv stream containing the inbound fee provided.
func EncodeInboundFee(w io.Writer, fee Fee) error {
	stream, err := tlv.NewStream(fee.Record())
	if err != nil {
		return err
	}

	return stream.Encode(w)
}

// DecodeInboundFee reads a tlv stream and returns the inbound fee it carries,
// if any. A stream without an inbound fee record is not an error, channels
// that don't set an inbound fee simply don't include it.
func DecodeInboundFee(r io.Reader) (fn.Option[Fee], error) {
	var fee Fee

	stream, err := tlv.NewStream(fee.Record())
	if err != nil {
		return fn.None[Fee](), err
	}

	tlvMap, err := stream.DecodeWithParsedTypes(r)
	if err != nil {
		return fn.None[Fee](), err
	}

	if _, ok := tlvMap[FeeRecordType]; !ok {
		return fn.None[Fee](), nil
	}

	return fn.Some(fee), nil
}
