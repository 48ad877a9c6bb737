package eventlog

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"lukechampine.com/blake3"

	"contentchain/core/types"
)

// Record is one committed event. Records form a hash chain: every hash covers
// the previous record's hash, so rewriting history breaks Verify.
type Record struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement:false" json:"seq"`
	Type       string    `gorm:"size:96;index;not null" json:"type"`
	Attributes string    `gorm:"type:text;not null" json:"-"`
	Hash       string    `gorm:"size:64;uniqueIndex;not null" json:"hash"`
	PrevHash   string    `gorm:"size:64;not null" json:"prevHash"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (Record) TableName() string { return "channel_events" }

// Event decodes the stored attributes back into an event.
func (r Record) Event() (*types.Event, error) {
	attrs := make(map[string]string)
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Entry is the JSON view of a record served to API clients.
type Entry struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Hash       string            `json:"hash"`
	PrevHash   string            `json:"prevHash"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Entry converts the record into its API form.
func (r Record) Entry() (Entry, error) {
	evt, err := r.Event()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Seq:        r.Seq,
		Type:       r.Type,
		Attributes: evt.Attributes,
		Hash:       r.Hash,
		PrevHash:   r.PrevHash,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// canonicalAttributes encodes attributes with sorted keys.
func canonicalAttributes(attrs map[string]string) (string, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func chainHash(prev string, seq uint64, typ, attrs string) string {
	var buf bytes.Buffer
	buf.WriteString(prev)
	buf.WriteByte(0)
	buf.WriteString(strconv.FormatUint(seq, 10))
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	buf.WriteString(attrs)
	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
