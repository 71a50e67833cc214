package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecowise-backend/internal/domain"
)

func TestCenterStoreLookups(t *testing.T) {
	s := NewCenterStore()
	ctx := context.Background()

	centers, err := s.ListCenters(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, centers)

	center, err := s.GetCenter(ctx, centers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, centers[0].Name, center.Name)

	_, err = s.GetCenter(ctx, 9999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCenterNotFound))
}
