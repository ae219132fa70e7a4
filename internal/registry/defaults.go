package registry

import "fmt"

const (
	boundaries2024 = "https://services1.arcgis.com/ESMARspQHYMw9BZ9/arcgis/rest/services/" +
		"Westminster_Parliamentary_Constituencies_July_2024_Boundaries_UK_BUC/FeatureServer/0/query" +
		"?outFields=*&where=1%3D1&f=geojson"

	// The 2010 to 2019 elections were all fought on the December 2019 boundary set.
	boundaries2019 = "https://opendata.arcgis.com/api/v3/datasets/b611e223cb4a4e0ea12b87ac46d03810_0/downloads/data?format=geojson&spatialRefId=4326"

	lsoa2021 = "https://opendata.arcgis.com/api/v3/datasets/04c65a08ecff4858bffc16e9ca9356f4_0/downloads/data?format=geojson&spatialRefId=4326"
)

// ResultsFile returns the conventional results file name for year.
func ResultsFile(year int) string {
	return fmt.Sprintf("HoC-GE%d-results-by-constituency.csv", year)
}

// DefaultFineLayer is the December 2021 LSOA super-generalised boundary set.
func DefaultFineLayer() FineLayer {
	return FineLayer{
		URL:        lsoa2021,
		CodeColumn: "LSOA21CD",
		NameColumn: "LSOA21NM",
	}
}

// Default returns the built-in registry, newest year first.
func Default() *Registry {
	datasets := []Dataset{
		{Year: 2024, BoundaryURL: boundaries2024, ResultsPath: ResultsFile(2024), NameColumn: "PCON24NM", CodeColumn: "PCON24CD"},
	}
	for _, year := range []int{2019, 2017, 2015, 2010} {
		datasets = append(datasets, Dataset{
			Year:        year,
			BoundaryURL: boundaries2019,
			ResultsPath: ResultsFile(year),
			NameColumn:  "pcon19nm",
			CodeColumn:  "pcon19cd",
		})
	}

	r, err := New(DefaultFineLayer(), datasets...)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}
