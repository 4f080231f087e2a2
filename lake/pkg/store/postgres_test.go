package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrodata/prodlake/lake/pkg/store"
	laketesting "github.com/petrodata/prodlake/lake/pkg/testing"
)

func TestLake_Store_Postgres_ResetAndRebind(t *testing.T) {
	ctx := context.Background()
	log := laketesting.NewLogger(t)
	cfg := store.Config{Logger: log, Driver: store.Postgres, DSN: laketesting.NewPostgresDSN(t)}

	s, err := store.Open(ctx, cfg)
	require.NoError(t, err)
	conn, err := s.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "CREATE TABLE wells_by_county (id TEXT, county TEXT)")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "INSERT INTO wells_by_county (id, county) VALUES (?, ?)", "2", "Allegany")
	require.NoError(t, err)

	var county string
	require.NoError(t, conn.QueryRowContext(ctx, "SELECT county FROM wells_by_county WHERE id = ?", "2").Scan(&county))
	require.Equal(t, "Allegany", county)
	require.NoError(t, conn.Close())
	require.NoError(t, s.Close())

	require.NoError(t, store.Reset(ctx, cfg))

	s, err = store.Open(ctx, cfg)
	require.NoError(t, err)
	defer s.Close()
	conn, err = s.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public'").Scan(&n))
	require.Zero(t, n)
}
