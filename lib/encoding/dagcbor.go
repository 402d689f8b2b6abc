package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	codecJson "github.com/ipld/go-ipld-prime/codec/json"
	"github.com/ipld/go-ipld-prime/codec/dagcbor"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
)

// EncodeDagCbor encodes obj through its JSON form into canonical dag-cbor.
// Map keys are sorted by the encoder so equal values give equal bytes.
func EncodeDagCbor(obj interface{}) ([]byte, error) {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}

	nb := basicnode.Prototype.Any.NewBuilder()
	if err := codecJson.Decode(nb, bytes.NewBuffer(buf)); err != nil {
		return nil, fmt.Errorf("dag-json decode: %w", err)
	}

	var bbuf bytes.Buffer
	if err := dagcbor.Encode(nb.Build(), &bbuf); err != nil {
		return nil, fmt.Errorf("dag-cbor encode: %w", err)
	}
	return bbuf.Bytes(), nil
}

// DecodeDagCbor is the inverse of EncodeDagCbor.
func DecodeDagCbor(data []byte, out interface{}) error {
	node, err := cbornode.Decode(data, multihash.SHA2_256, -1)
	if err != nil {
		return fmt.Errorf("dag-cbor decode: %w", err)
	}
	jsonBytes, err := node.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, out)
}

// HashBytes returns the CIDv1 of data under the given codec.
func HashBytes(data []byte, mf multicodec.Code) (cid.Cid, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    uint64(mf),
		MhType:   multihash.SHA2_256,
		MhLength: -1,
	}

	return prefix.Sum(data)
}
