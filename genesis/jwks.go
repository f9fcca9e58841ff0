package genesis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/log"
)

var errJWKMismatch = errors.New("observed JWKs differ from upserted set")

// JWK is a single key as stored by the JWK manager. Variant 0 is an RSA key,
// 1 an unsupported key kept as opaque data.
type JWK struct {
	Variant uint8
	Data    []byte
}

// ProviderJWKs is the key set of one OIDC issuer.
type ProviderJWKs struct {
	Issuer  string
	Version uint64
	Jwks    []JWK
}

// JWKSet is the list of providers upserted at genesis.
type JWKSet struct {
	Entries []ProviderJWKs
}

type jsonJWK struct {
	Variant uint8  `json:"variant"`
	Data    string `json:"data"`
}

type jsonProviderJWKs struct {
	Issuer  string    `json:"issuer"`
	Version uint64    `json:"version"`
	Jwks    []jsonJWK `json:"jwks"`
}

type jsonJWKSet struct {
	Entries []jsonProviderJWKs `json:"entries"`
}

// LoadJWKs reads a JSON JWK file. Key data is hex with or without 0x.
func LoadJWKs(file string) (*JWKSet, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read JWK file: %w", err)
	}
	set, err := ParseJWKs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	log.Info("Loaded JWKs", "file", file, "providers", len(set.Entries))
	for i, p := range set.Entries {
		log.Debug("JWK provider", "index", i+1, "issuer", p.Issuer, "version", p.Version, "keys", len(p.Jwks))
	}
	return set, nil
}

// ParseJWKs decodes the JSON form of a JWK set.
func ParseJWKs(data []byte) (*JWKSet, error) {
	var raw jsonJWKSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse JWKs: %w", err)
	}
	set := &JWKSet{Entries: make([]ProviderJWKs, len(raw.Entries))}
	for i, p := range raw.Entries {
		keys := make([]JWK, len(p.Jwks))
		for j, k := range p.Jwks {
			blob, err := decodeHex(k.Data)
			if err != nil {
				return nil, fmt.Errorf("provider %s key %d: %w", p.Issuer, j+1, err)
			}
			keys[j] = JWK{Variant: k.Variant, Data: blob}
		}
		set.Entries[i] = ProviderJWKs{Issuer: p.Issuer, Version: p.Version, Jwks: keys}
	}
	return set, nil
}

// Keys returns the total number of keys across providers.
func (s *JWKSet) Keys() int {
	n := 0
	for _, p := range s.Entries {
		n += len(p.Jwks)
	}
	return n
}

// Equal reports whether both sets hold the same providers and keys in the
// same order.
func (s *JWKSet) Equal(other *JWKSet) bool {
	if len(s.Entries) != len(other.Entries) {
		return false
	}
	for i, p := range s.Entries {
		q := other.Entries[i]
		if p.Issuer != q.Issuer || p.Version != q.Version || len(p.Jwks) != len(q.Jwks) {
			return false
		}
		for j, k := range p.Jwks {
			if k.Variant != q.Jwks[j].Variant || !bytes.Equal(k.Data, q.Jwks[j].Data) {
				return false
			}
		}
	}
	return true
}

func encodeUpsertJWKs(set *JWKSet) ([]byte, error) {
	return jwkManagerABI.Pack("upsertObservedJWKs", set.Entries)
}

func encodeGetObservedJWKs() []byte {
	data, err := jwkManagerABI.Pack("getObservedJWKs")
	if err != nil {
		panic(err)
	}
	return data
}

// decodeObservedJWKs unpacks the return data of getObservedJWKs.
func decodeObservedJWKs(output []byte) (*JWKSet, error) {
	values, err := jwkManagerABI.Unpack("getObservedJWKs", output)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getObservedJWKs returned %d values", len(values))
	}
	return abi.ConvertType(values[0], new(JWKSet)).(*JWKSet), nil
}
