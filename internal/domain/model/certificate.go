package model

import "encoding/json"

type CertificateKind string

const (
	CertKindStakeRegistration   CertificateKind = "StakeRegistration"
	CertKindStakeDeregistration CertificateKind = "StakeDeregistration"
	CertKindStakeDelegation     CertificateKind = "StakeDelegation"
	CertKindPoolRegistration    CertificateKind = "PoolRegistration"
	CertKindPoolRetirement      CertificateKind = "PoolRetirement"
	CertKindMIR                 CertificateKind = "MoveInstantaneousRewardsCert"
)

// Certificate is one of the concrete certificate types below.
// JSON encodings carry a "kind" discriminator.
type Certificate interface {
	Kind() CertificateKind
	Index() int
}

type StakeRegistration struct {
	CertIndex       int    `json:"certIndex"`
	StakeCredential string `json:"stakeCredential"`
}

type StakeDeregistration struct {
	CertIndex       int    `json:"certIndex"`
	StakeCredential string `json:"stakeCredential"`
}

type StakeDelegation struct {
	CertIndex       int    `json:"certIndex"`
	StakeCredential string `json:"stakeCredential"`
	PoolKeyHash     string `json:"poolKeyHash"`
}

type PoolRelay struct {
	IPv4       *string `json:"ipv4"`
	IPv6       *string `json:"ipv6"`
	DNSName    *string `json:"dnsName"`
	DNSSrvName *string `json:"dnsSrvName"`
	Port       *int    `json:"port"`
}

type PoolMetadata struct {
	URL          string `json:"url"`
	MetadataHash string `json:"metadataHash"`
}

type PoolParams struct {
	Operator      string        `json:"operator"`
	VRFKeyHash    string        `json:"vrfKeyHash"`
	Pledge        string        `json:"pledge"`
	Cost          string        `json:"cost"`
	Margin        string        `json:"margin"`
	RewardAccount string        `json:"rewardAccount"`
	PoolOwners    []string      `json:"poolOwners"`
	Relays        []PoolRelay   `json:"relays"`
	PoolMetadata  *PoolMetadata `json:"poolMetadata"`
}

type PoolRegistration struct {
	CertIndex  int        `json:"certIndex"`
	PoolParams PoolParams `json:"poolParams"`
}

type PoolRetirement struct {
	CertIndex   int    `json:"certIndex"`
	PoolKeyHash string `json:"poolKeyHash"`
	Epoch       int64  `json:"epoch"`
}

type MIRPot string

const (
	MIRPotReserve  MIRPot = "Reserve"
	MIRPotTreasury MIRPot = "Treasury"
)

// MoveInstantaneousRewardsCert maps hex stake credentials to reward amounts.
type MoveInstantaneousRewardsCert struct {
	CertIndex int               `json:"certIndex"`
	Pot       MIRPot            `json:"pot"`
	Rewards   map[string]string `json:"rewards"`
}

func (c StakeRegistration) Kind() CertificateKind            { return CertKindStakeRegistration }
func (c StakeDeregistration) Kind() CertificateKind          { return CertKindStakeDeregistration }
func (c StakeDelegation) Kind() CertificateKind              { return CertKindStakeDelegation }
func (c PoolRegistration) Kind() CertificateKind             { return CertKindPoolRegistration }
func (c PoolRetirement) Kind() CertificateKind               { return CertKindPoolRetirement }
func (c MoveInstantaneousRewardsCert) Kind() CertificateKind { return CertKindMIR }

func (c StakeRegistration) Index() int            { return c.CertIndex }
func (c StakeDeregistration) Index() int          { return c.CertIndex }
func (c StakeDelegation) Index() int              { return c.CertIndex }
func (c PoolRegistration) Index() int             { return c.CertIndex }
func (c PoolRetirement) Index() int               { return c.CertIndex }
func (c MoveInstantaneousRewardsCert) Index() int { return c.CertIndex }

func (c StakeRegistration) MarshalJSON() ([]byte, error) {
	type plain StakeRegistration
	return marshalWithKind(c.Kind(), plain(c))
}

func (c StakeDeregistration) MarshalJSON() ([]byte, error) {
	type plain StakeDeregistration
	return marshalWithKind(c.Kind(), plain(c))
}

func (c StakeDelegation) MarshalJSON() ([]byte, error) {
	type plain StakeDelegation
	return marshalWithKind(c.Kind(), plain(c))
}

func (c PoolRegistration) MarshalJSON() ([]byte, error) {
	type plain PoolRegistration
	return marshalWithKind(c.Kind(), plain(c))
}

func (c PoolRetirement) MarshalJSON() ([]byte, error) {
	type plain PoolRetirement
	return marshalWithKind(c.Kind(), plain(c))
}

func (c MoveInstantaneousRewardsCert) MarshalJSON() ([]byte, error) {
	type plain MoveInstantaneousRewardsCert
	return marshalWithKind(c.Kind(), plain(c))
}

// marshalWithKind encodes v's fields plus a leading "kind" member.
func marshalWithKind(kind CertificateKind, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head, err := json.Marshal(map[string]CertificateKind{"kind": kind})
	if err != nil {
		return nil, err
	}
	if len(body) <= 2 {
		return head, nil
	}
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}
