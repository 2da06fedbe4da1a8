package benchmark

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// Workload generates the documents the seed command writes
type Workload interface {
	// Name returns the human-readable name of this workload
	Name() string

	// GetDescription returns a detailed description of the workload
	GetDescription() string

	// GenerateDocuments produces count deterministic documents for seed
	GenerateDocuments(seed int64, count int) iter.Seq[Document]
}

// Document is a JSON document ready to upsert
type Document struct {
	ID           string
	PartitionKey string
	Body         []byte
}

// WorkloadType represents available workload types
type WorkloadType string

const (
	WorkloadShopping WorkloadType = "shopping"
	WorkloadGeneric  WorkloadType = "generic"
)

// WorkloadConfig contains configuration specific to workloads
type WorkloadConfig struct {
	Type             WorkloadType
	PartitionKeyPath string
	ValueSize        int // generic: payload bytes per document
}

// CreateWorkload creates a workload instance based on the type
func CreateWorkload(cfg WorkloadConfig) (Workload, error) {
	switch cfg.Type {
	case WorkloadShopping, "":
		return &ShoppingWorkload{partitionKeyPath: cfg.PartitionKeyPath}, nil
	case WorkloadGeneric:
		return &GenericWorkload{partitionKeyPath: cfg.PartitionKeyPath, valueSize: cfg.ValueSize}, nil
	default:
		return nil, fmt.Errorf("unknown workload %q", cfg.Type)
	}
}

var (
	itemAdjectives = []string{"Red", "Blue", "Wool", "Cotton", "Striped", "Hiking", "Running", "Winter"}
	itemNouns      = []string{"Socks", "Shirt", "Hat", "Shoes", "Jacket", "Scarf", "Gloves", "Belt"}
	buyerStates    = []string{"WA", "OR", "CA", "NV", "ID", "TX", "NY", "FL", "IL", "CO"}
)

// ShoppingWorkload generates shopping cart items: an id, an Item name, a
// Price and a BuyerState. The buyer state doubles as the partition key.
type ShoppingWorkload struct {
	partitionKeyPath string
}

func (w *ShoppingWorkload) Name() string {
	return "Shopping"
}

func (w *ShoppingWorkload) GetDescription() string {
	return "Shopping items partitioned by buyer state; about one in eight items are socks"
}

func (w *ShoppingWorkload) GenerateDocuments(seed int64, count int) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < count; i++ {
			id, err := uuid.NewRandomFromReader(rng)
			if err != nil {
				return
			}
			state := buyerStates[rng.Intn(len(buyerStates))]
			doc := map[string]any{
				"id":         id.String(),
				"Item":       itemAdjectives[rng.Intn(len(itemAdjectives))] + " " + itemNouns[rng.Intn(len(itemNouns))],
				"Price":      math.Round((1+rng.Float64()*199)*100) / 100,
				"BuyerState": state,
			}
			if !yield(newDocument(doc, w.partitionKeyPath, state)) {
				return
			}
		}
	}
}

// GenericWorkload generates documents carrying a random payload of a fixed size
type GenericWorkload struct {
	partitionKeyPath string
	valueSize        int
}

func (w *GenericWorkload) Name() string {
	return "Generic"
}

func (w *GenericWorkload) GetDescription() string {
	return fmt.Sprintf("Documents with a %d byte random payload spread over 16 partitions", w.valueSize)
}

func (w *GenericWorkload) GenerateDocuments(seed int64, count int) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < count; i++ {
			id, err := uuid.NewRandomFromReader(rng)
			if err != nil {
				return
			}
			payload := make([]byte, (w.valueSize+1)/2)
			rng.Read(payload)

			pk := fmt.Sprintf("p%02d", rng.Intn(16))
			doc := map[string]any{
				"id":      id.String(),
				"Item":    itemNouns[rng.Intn(len(itemNouns))],
				"Payload": hex.EncodeToString(payload)[:w.valueSize],
			}
			if !yield(newDocument(doc, w.partitionKeyPath, pk)) {
				return
			}
		}
	}
}

// newDocument sets the partition key property named by path ("/a/b" nests)
// and encodes the document
func newDocument(doc map[string]any, path, partitionKey string) Document {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 0 && parts[0] != "" {
		cur := doc
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = partitionKey
	}

	// maps of strings and float64 always encode
	body, _ := json.Marshal(doc)
	return Document{
		ID:           doc["id"].(string),
		PartitionKey: partitionKey,
		Body:         body,
	}
}
