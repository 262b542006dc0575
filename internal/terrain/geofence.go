package terrain

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pereirasil/corrida-app-sub000/internal/geo"
)

// Corridor is a named cycling corridor described by its centre line.
type Corridor struct {
	Name   string       `yaml:"name" json:"name" validate:"required"`
	Points []geo.LatLon `yaml:"points" json:"points" validate:"min=2,dive"`
}

// Area is a named area approximated by a bounding box.
type Area struct {
	Name  string  `yaml:"name" json:"name" validate:"required"`
	South float64 `yaml:"south" json:"south" validate:"gte=-90,lte=90"`
	West  float64 `yaml:"west" json:"west" validate:"gte=-180,lte=180"`
	North float64 `yaml:"north" json:"north" validate:"gte=-90,lte=90,gtfield=South"`
	East  float64 `yaml:"east" json:"east" validate:"gte=-180,lte=180,gtfield=West"`
}

// Contains reports whether the coordinate lies inside the box.
func (p Area) Contains(lat, lon float64) bool {
	return lat >= p.South && lat <= p.North && lon >= p.West && lon <= p.East
}

// Geofences is the table consulted before the speed heuristic.
type Geofences struct {
	BikePaths []Corridor `yaml:"bike_paths" json:"bike_paths" validate:"dive"`
	Parks     []Area     `yaml:"parks" json:"parks" validate:"dive"`
}

// Merge returns g with the entries of other appended.
func (g Geofences) Merge(other Geofences) Geofences {
	return Geofences{
		BikePaths: append(append([]Corridor(nil), g.BikePaths...), other.BikePaths...),
		Parks:     append(append([]Area(nil), g.Parks...), other.Parks...),
	}
}

// DefaultGeofences returns the built-in table for central São Paulo.
func DefaultGeofences() Geofences {
	return Geofences{
		BikePaths: []Corridor{
			{Name: "Ciclovia Avenida Paulista", Points: []geo.LatLon{
				{Lat: -23.5555, Lon: -46.6620},
				{Lat: -23.5614, Lon: -46.6559},
				{Lat: -23.5678, Lon: -46.6478},
			}},
			{Name: "Ciclovia Faria Lima", Points: []geo.LatLon{
				{Lat: -23.5670, Lon: -46.6930},
				{Lat: -23.5780, Lon: -46.6870},
				{Lat: -23.5870, Lon: -46.6810},
			}},
			{Name: "Ciclovia Rio Pinheiros", Points: []geo.LatLon{
				{Lat: -23.5410, Lon: -46.7290},
				{Lat: -23.5600, Lon: -46.7030},
				{Lat: -23.5790, Lon: -46.6930},
				{Lat: -23.6000, Lon: -46.6960},
				{Lat: -23.6250, Lon: -46.7050},
			}},
		},
		Parks: []Area{
			{Name: "Parque Ibirapuera", South: -23.5940, West: -46.6650, North: -23.5790, East: -46.6500},
			{Name: "Parque Villa-Lobos", South: -23.5510, West: -46.7280, North: -23.5410, East: -46.7170},
			{Name: "Parque do Povo", South: -23.5880, West: -46.6890, North: -23.5840, East: -46.6840},
		},
	}
}

// LoadGeofences reads and validates a YAML geofence file.
func LoadGeofences(path string) (Geofences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Geofences{}, fmt.Errorf("failed to read geofence file: %w", err)
	}
	var g Geofences
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Geofences{}, fmt.Errorf("failed to parse geofence file %s: %w", path, err)
	}
	if err := validator.New().Struct(g); err != nil {
		return Geofences{}, fmt.Errorf("invalid geofence file %s: %w", path, err)
	}
	return g, nil
}
