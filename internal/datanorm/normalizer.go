package datanorm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/receipt-normalizer/internal/pkg/logger"
)

// Item identifier strategies.
const (
	ItemIDsDeterministic = "deterministic"
	ItemIDsRandom        = "random"
)

// itemNamespace seeds deterministic item identifiers.
var itemNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("receipt-normalizer/receiptItems"))

// Config controls the cleaners and the item extractor.
type Config struct {
	// ItemIDs is ItemIDsDeterministic (default) or ItemIDsRandom.
	ItemIDs string
	// CanonicalizePlainTimestamps reformats recognizable plain timestamp strings
	// into TimestampLayout instead of passing them through.
	CanonicalizePlainTimestamps bool
}

// Normalizer holds the configuration shared by the entity cleaners and the item
// extractor. It keeps no state between calls.
type Normalizer struct {
	cfg Config
}

func NewNormalizer(cfg Config) *Normalizer {
	if cfg.ItemIDs == "" {
		cfg.ItemIDs = ItemIDsDeterministic
	}
	return &Normalizer{cfg: cfg}
}

// timestamp applies NormalizeTimestamp and, when configured, canonicalizes plain strings.
func (n *Normalizer) timestamp(field string, v any) *string {
	ts := NormalizeTimestamp(v)
	if ts == nil || isCanonical(*ts) {
		return ts
	}
	if n.cfg.CanonicalizePlainTimestamps {
		if c, ok := CanonicalizeTimestamp(*ts); ok {
			return &c
		}
	}
	logger.Warn("datanorm: non-canonical timestamp kept", "field", field, "raw", *ts)
	return ts
}

func (n *Normalizer) itemID(receiptID *string, index int) string {
	if n.cfg.ItemIDs == ItemIDsRandom {
		return uuid.NewString()
	}
	rid := ""
	if receiptID != nil {
		rid = *receiptID
	}
	return uuid.NewSHA1(itemNamespace, []byte(fmt.Sprintf("%s#%d", rid, index))).String()
}
