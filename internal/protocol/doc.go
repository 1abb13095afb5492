// Package protocol owns the uwsgi wire contract.
//
// Ownership boundary:
// - vars: request metadata to CGI-style variable mapping
// - packet: 4-byte packet header and length-prefixed variable block
// - body: response body decoding and form body encoding
//
// Reference: https://uwsgi-docs.readthedocs.io/en/latest/Protocol.html
package protocol
