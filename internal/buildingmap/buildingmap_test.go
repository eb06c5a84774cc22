package buildingmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/buildingmap"
)

func TestRealEstateFor(t *testing.T) {
	tests := []struct {
		name    string
		itemRef string
		strict  bool
		want    string
		wantErr error
	}{
		{"kjorbo", "GP-SXD9E-113:SOKP16-NAE4/FCB.434_121-1OU001.VAVmaks4", false, "kjorbo", nil},
		{"double dash", "GP-SXD9E-113:SOKB16--NAE99/Powermeter.floor01", false, "kjorbo", nil},
		{"postgirobygget", "GP-SXD9E-113:OSBG14-NAE1/x", false, "postgirobygget", nil},
		{"mapped to unknown", "GP-SXD9E-113:SOG51-NAE1/x", true, buildingmap.Unknown, nil},
		{"unmapped lenient", "GP-SXD9E-113:ZZZ99-NAE1/x", false, buildingmap.Unknown, nil},
		{"unmapped strict", "GP-SXD9E-113:ZZZ99-NAE1/x", true, "", buildingmap.ErrUnknownBuilding},
		{"no colon", "SOKP16-NAE4", false, "", buildingmap.ErrUnparsableItemReference},
		{"empty", "", false, "", buildingmap.ErrUnparsableItemReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildingmap.Canonical.RealEstateFor(tt.itemRef, tt.strict)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildingsFor(t *testing.T) {
	assert.Equal(t,
		[]string{"MNBK12", "MNBK16", "MNBK17", "MNBK17C", "SOKB16", "SOKP14", "SOKP16", "SOKP22"},
		buildingmap.Canonical.BuildingsFor("kjorbo"))
	assert.Equal(t, []string{"OSBG14"}, buildingmap.Canonical.BuildingsFor("postgirobygget"))
	assert.Empty(t, buildingmap.Canonical.BuildingsFor("nowhere"))
}

func TestSplitItemReference(t *testing.T) {
	site, building, err := buildingmap.SplitItemReference("GP-SXD9E-113:SOKP16-NAE4/FCB")
	require.NoError(t, err)
	assert.Equal(t, "GP-SXD9E-113", site)
	assert.Equal(t, "SOKP16", building)
}
