package engine

// Region tags a data center with its broad geographic market
type Region string

const (
	RegionNorthAmerica Region = "north_america"
	RegionEurope       Region = "europe"
	RegionAsiaPacific  Region = "asia_pacific"
	RegionSouthAmerica Region = "south_america"
	RegionOther        Region = "other"
)

// DataCenter is a fixed hosting location players can be routed to. Busy
// counts back the optional per-playlist server-capacity guard; they are the
// only capacity-shared resource in the engine.
type DataCenter struct {
	ID       int              `json:"id"`
	Name     string           `json:"name"`
	Location LatLon           `json:"location"`
	Region   Region           `json:"region"`
	Busy     map[Playlist]int `json:"-"`
}

// defaultDataCenters returns the fixed data-center table. IDs are dense and
// double as indexes into per-player ping slices.
func defaultDataCenters() []DataCenter {
	dcs := []DataCenter{
		{ID: 0, Name: "us-east", Location: LatLon{Lat: 39.0, Lon: -77.5}, Region: RegionNorthAmerica},
		{ID: 1, Name: "us-central", Location: LatLon{Lat: 41.9, Lon: -93.6}, Region: RegionNorthAmerica},
		{ID: 2, Name: "us-west", Location: LatLon{Lat: 45.8, Lon: -119.7}, Region: RegionNorthAmerica},
		{ID: 3, Name: "eu-west", Location: LatLon{Lat: 53.3, Lon: -6.3}, Region: RegionEurope},
		{ID: 4, Name: "eu-central", Location: LatLon{Lat: 50.1, Lon: 8.7}, Region: RegionEurope},
		{ID: 5, Name: "ap-northeast", Location: LatLon{Lat: 35.6, Lon: 139.7}, Region: RegionAsiaPacific},
		{ID: 6, Name: "ap-southeast", Location: LatLon{Lat: 1.35, Lon: 103.8}, Region: RegionAsiaPacific},
		{ID: 7, Name: "ap-south", Location: LatLon{Lat: 19.1, Lon: 72.9}, Region: RegionAsiaPacific},
		{ID: 8, Name: "sa-east", Location: LatLon{Lat: -23.5, Lon: -46.6}, Region: RegionSouthAmerica},
		{ID: 9, Name: "oceania", Location: LatLon{Lat: -33.9, Lon: 151.2}, Region: RegionOther},
	}
	for i := range dcs {
		dcs[i].Busy = make(map[Playlist]int)
	}
	return dcs
}
