// Package domain defines the records the crawler discovers, enriches and publishes.
package domain

import (
	"fmt"
	"time"
)

// Kind selects one of the two entity tables.
type Kind string

const (
	KindObject        Kind = "objects"
	KindNetworkDevice Kind = "network-devices"
)

// ParseKind accepts the CLI spelling of a kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindObject, "object":
		return KindObject, nil
	case KindNetworkDevice, "network-device", "networkDevices":
		return KindNetworkDevice, nil
	default:
		return "", fmt.Errorf("unknown entity kind %q (want objects or network-devices)", s)
	}
}

// Enrichable is satisfied by every stored entity.
type Enrichable interface {
	EntityKind() Kind
	Key() string
	Reference() string
	DisplayName() string
	SuccessCount() int
	Attempts() int
	RecordSuccess(at time.Time, payload string)
	RecordFailure(at time.Time)
}

// Record is the crawl bookkeeping shared by objects and network devices.
type Record struct {
	ID            string     `db:"id"`
	ParentID      *string    `db:"parent_id"`
	Name          string     `db:"name"`
	ItemReference string     `db:"item_reference"`
	Discovered    time.Time  `db:"discovered"`
	LastCrawl     *time.Time `db:"last_crawl"`
	LastError     *time.Time `db:"last_error"`
	LastSync      *time.Time `db:"last_sync"`
	Successes     int        `db:"successes"`
	Errors        int        `db:"errors"`
	Response      *string    `db:"response"`
}

func (r *Record) Key() string         { return r.ID }
func (r *Record) Reference() string   { return r.ItemReference }
func (r *Record) DisplayName() string { return r.Name }
func (r *Record) SuccessCount() int   { return r.Successes }

// RecordSuccess mirrors the store update after a successful deep fetch.
func (r *Record) RecordSuccess(at time.Time, payload string) {
	r.LastCrawl = &at
	r.Successes++
	r.Response = &payload
}

// RecordFailure mirrors the store update after a failed deep fetch.
func (r *Record) RecordFailure(at time.Time) {
	r.LastError = &at
	r.Errors++
}

// Attempts is successes plus errors.
func (r *Record) Attempts() int { return r.Successes + r.Errors }

// Object is a point or device listed under /objects.
type Object struct {
	Record
	Type int `db:"type"`
}

// EntityKind implements Enrichable.
func (*Object) EntityKind() Kind { return KindObject }

// NetworkDevice is listed under /networkDevices and has no type code.
type NetworkDevice struct {
	Record
}

// EntityKind implements Enrichable.
func (*NetworkDevice) EntityKind() Kind { return KindNetworkDevice }

// Discovered is a listing item ready for insertion.
type Discovered struct {
	ID            string
	ParentID      *string
	Name          string
	ItemReference string
	Type          int
}

// ReferenceEntry maps a type code to its description.
type ReferenceEntry struct {
	ID          int64  `db:"id"`
	Description string `db:"description"`
	EnumSet     int64  `db:"enumset"`
}

var (
	_ Enrichable = (*Object)(nil)
	_ Enrichable = (*NetworkDevice)(nil)
)
