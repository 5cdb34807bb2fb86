package settings

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/imagegrab-service/internal/entity"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		raw         map[string]string
		want        entity.FilterThresholds
		wantDetails bool
	}{
		{
			name: "empty store",
			raw:  nil,
			want: entity.FilterThresholds{},
		},
		{
			name: "all enabled",
			raw: map[string]string{
				KeyEnableMinSize: "true", KeyMinSize: "12.5",
				KeyEnableMinWidth: "true", KeyMinWidth: "800",
				KeyEnableMinHeight: "true", KeyMinHeight: "600",
				KeyEnableDetails: "true",
			},
			want:        entity.FilterThresholds{MinSizeKB: 12.5, MinWidth: 800, MinHeight: 600},
			wantDetails: true,
		},
		{
			name: "disabled thresholds are zero",
			raw: map[string]string{
				KeyEnableMinSize: "false", KeyMinSize: "100",
				KeyMinWidth: "800",
				KeyEnableDetails: "yes",
			},
			want: entity.FilterThresholds{},
		},
		{
			name: "unparseable and negative",
			raw: map[string]string{
				KeyEnableMinSize: "true", KeyMinSize: "big",
				KeyEnableMinWidth: "true", KeyMinWidth: "-5",
				KeyEnableMinHeight: "true", KeyMinHeight: "",
			},
			want: entity.FilterThresholds{},
		},
		{
			name: "infinite size",
			raw: map[string]string{
				KeyEnableMinSize: "true", KeyMinSize: "+Inf",
				KeyEnableMinWidth: "true", KeyMinWidth: "300",
			},
			want: entity.FilterThresholds{MinWidth: 300},
		},
		{
			name: "not a number size",
			raw: map[string]string{
				KeyEnableMinSize: "true", KeyMinSize: "NaN",
			},
			want: entity.FilterThresholds{},
		},
		{
			name: "spelled out infinity",
			raw: map[string]string{
				KeyEnableMinSize: "true", KeyMinSize: " infinity ",
			},
			want: entity.FilterThresholds{},
		},
		{
			name: "leading integer",
			raw: map[string]string{
				KeyEnableMinWidth: "true", KeyMinWidth: " 640px",
			},
			want: entity.FilterThresholds{MinWidth: 640},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, details := Parse(tt.raw)
			assert.Equal(t, tt.want, th)
			assert.Equal(t, tt.wantDetails, details)
		})
	}
}

func TestStore_Set(t *testing.T) {
	s := Store{}
	require.NoError(t, s.Set(KeyMinWidth, "300"))
	assert.Equal(t, "300", s[KeyMinWidth])

	err := s.Set("colour", "red")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.NotContains(t, s, "colour")
}

func TestLoadSave(t *testing.T) {
	afs := afero.NewMemMapFs()

	s, err := Load(afs, DefaultFile)
	require.NoError(t, err)
	assert.Empty(t, s)

	require.NoError(t, s.Set(KeyEnableMinHeight, "true"))
	require.NoError(t, s.Set(KeyMinHeight, "250"))
	require.NoError(t, Save(afs, DefaultFile, s))

	loaded, err := Load(afs, DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	th, _ := Parse(loaded)
	assert.Equal(t, 250, th.MinHeight)
}

func TestLoad_Malformed(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "bad.yaml", []byte("- not\n- a map\n"), 0o644))

	_, err := Load(afs, "bad.yaml")
	assert.Error(t, err)
}
