package wallet

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/iotaledger/iota-wallet/pkg/address"
)

// AccountIDPrefix is the scheme of textual account ids.
const AccountIDPrefix = "wallet-account://"

// IdentifierKind tells which property of an account an Identifier refers to.
type IdentifierKind uint8

const (
	IdentifierIndex IdentifierKind = iota
	IdentifierAlias
	IdentifierAddress
	IdentifierID
)

// Identifier selects an account by index, alias, one of its addresses or its id.
type Identifier struct {
	kind    IdentifierKind
	index   uint32
	alias   string
	address *address.Address
	id      uuid.UUID
}

func ByIndex(index uint32) Identifier {
	return Identifier{kind: IdentifierIndex, index: index}
}

func ByAlias(alias string) Identifier {
	return Identifier{kind: IdentifierAlias, alias: alias}
}

func ByAddress(addr *address.Address) Identifier {
	return Identifier{kind: IdentifierAddress, address: addr}
}

func ByID(id uuid.UUID) Identifier {
	return Identifier{kind: IdentifierID, id: id}
}

// ParseIdentifier interprets s as a bech32 address, then as an account id and otherwise as an alias.
func ParseIdentifier(s string) Identifier {
	if addr, err := address.Parse(s); err == nil {
		return ByAddress(addr)
	}

	if rawID, isID := strings.CutPrefix(s, AccountIDPrefix); isID {
		if id, err := uuid.Parse(rawID); err == nil {
			return ByID(id)
		}
	}

	return ByAlias(s)
}

func (i Identifier) Kind() IdentifierKind {
	return i.kind
}

func (i Identifier) String() string {
	switch i.kind {
	case IdentifierIndex:
		return strconv.FormatUint(uint64(i.index), 10)
	case IdentifierAddress:
		return i.address.String()
	case IdentifierID:
		return FormatAccountID(i.id)
	default:
		return i.alias
	}
}

// matches returns true if the identifier refers to the given account.
func (i Identifier) matches(a *Account) bool {
	switch i.kind {
	case IdentifierIndex:
		return a.Index() == i.index
	case IdentifierAlias:
		return a.Alias() == i.alias
	case IdentifierAddress:
		return a.HasAddress(i.address)
	case IdentifierID:
		return a.ID() == i.id
	default:
		return false
	}
}

// FormatAccountID returns the textual form of an account id.
func FormatAccountID(id uuid.UUID) string {
	return AccountIDPrefix + id.String()
}
