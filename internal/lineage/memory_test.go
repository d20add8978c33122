package lineage_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"solace/internal/lineage"
	"solace/internal/lineage/storetest"
)

// TestInMemoryConformance runs the shared store property suite against the
// in-memory implementation.
func TestInMemoryConformance(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		NewStore: func(*testing.T) lineage.Store[storetest.Note] {
			return lineage.NewInMemory[storetest.Note]()
		},
	})
}
