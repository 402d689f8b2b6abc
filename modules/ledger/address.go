package ledger

import (
	"reward-polls/modules/common"

	"github.com/btcsuite/btcutil/base58"
	"github.com/multiformats/go-multihash"
)

// Address identifies a ledger account. Derived addresses are a pure function
// of a namespace tag and an id and need no prior registration.
type Address string

func (a Address) String() string {
	return string(a)
}

// DeriveAddress returns base58(sha2-256 multihash(namespace || 0x00 || id)).
func DeriveAddress(namespace, id string) Address {
	seed := make([]byte, 0, len(namespace)+1+len(id))
	seed = append(seed, namespace...)
	seed = append(seed, 0)
	seed = append(seed, id...)

	// only fails for unknown hash codes
	mh, err := multihash.Sum(seed, multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return Address(base58.Encode(mh))
}

func PollAddress(pollId string) Address {
	return DeriveAddress(common.NAMESPACE_POLL, pollId)
}

func VaultAddress(pollId string) Address {
	return DeriveAddress(common.NAMESPACE_VAULT, pollId)
}

func TokenAddress(owner string) Address {
	return DeriveAddress(common.NAMESPACE_TOKEN, owner)
}

func ClaimAddress(pollId, participant string) Address {
	return DeriveAddress(common.NAMESPACE_CLAIM, pollId+"/"+participant)
}
