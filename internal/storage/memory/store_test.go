package memory

import (
	"testing"

	"github.com/bobmcallan/portfoliohub/internal/interfaces"
	"github.com/bobmcallan/portfoliohub/internal/storage/storetest"
)

func TestUserDataStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.UserDataStore {
		return NewStore()
	})
}
