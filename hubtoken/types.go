package hubtoken

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ScopeKind is one of the six scope action kinds a token can grant.
type ScopeKind string

const (
	ScopePutFile               ScopeKind = "putFile"
	ScopePutFilePrefix         ScopeKind = "putFilePrefix"
	ScopeDeleteFile            ScopeKind = "deleteFile"
	ScopeDeleteFilePrefix      ScopeKind = "deleteFilePrefix"
	ScopePutFileArchival       ScopeKind = "putFileArchival"
	ScopePutFileArchivalPrefix ScopeKind = "putFileArchivalPrefix"
)

// ScopeClaim is one entry of the payload's "scopes" array.
type ScopeClaim struct {
	Scope  ScopeKind `json:"scope"`
	Domain string    `json:"domain"`
}

// Payload is the token envelope's payload, §3 and §6.
type Payload struct {
	Iss              string       `json:"iss"`
	Iat              int64        `json:"iat"`
	Exp              *int64       `json:"exp,omitempty"`
	GaiaChallenge    string       `json:"gaiaChallenge,omitempty"`
	HubURL           string       `json:"hubUrl,omitempty"`
	Salt             string       `json:"salt,omitempty"`
	AssociationToken string       `json:"associationToken,omitempty"`
	Scopes           []ScopeClaim `json:"scopes,omitempty"`

	// ChildToAssociate is set only inside an association-token link: the
	// hex-encoded public key this link delegates signing authority to.
	ChildToAssociate string `json:"childToAssociate,omitempty"`
}

// Header is the token envelope's header.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}
