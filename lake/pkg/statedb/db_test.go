package statedb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLake_StateDB_New_Success(t *testing.T) {
	t.Parallel()

	db, err := New()
	require.NoError(t, err)
	require.NotNil(t, db)
	require.GreaterOrEqual(t, len(db.byCode), 51)
}

func TestLake_StateDB_Resolve(t *testing.T) {
	t.Parallel()

	db, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name     string
		label    string
		wantCode string
		wantName string
	}{
		{name: "code", label: "WV", wantCode: "WV", wantName: "West Virginia"},
		{name: "lowercase code", label: " pa ", wantCode: "PA", wantName: "Pennsylvania"},
		{name: "full name", label: "new york", wantCode: "NY", wantName: "New York"},
		{name: "unknown", label: "Atlantis", wantCode: "", wantName: "Atlantis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, name := db.Resolve(tt.label)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantName, name)
		})
	}
}

func TestLake_StateDB_NilSafe(t *testing.T) {
	t.Parallel()

	var db *StateDB
	_, ok := db.Name("WV")
	require.False(t, ok)
	code, name := db.Resolve("WV")
	require.Equal(t, "", code)
	require.Equal(t, "WV", name)
}
