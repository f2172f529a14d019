/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.*/

// Package conflateutil provides the conflate command line interface
// and HTTP service.
package conflateutil

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/conflate"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(sparseCmd)
	Root.AddCommand(mergeCmd)
	Root.AddCommand(distanceCmd)
	Root.AddCommand(closestCmd)
	Root.AddCommand(serveCmd)
	Root.AddCommand(configCmd)

	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose specifies whether to log debugging information.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "procs",
			usage: `
              procs is the number of worker goroutines to use. Values
              less than 1 mean one per available processor.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "reference",
			usage: `
              reference is the path to the reference geometries, as a
              shapefile (.shp) or GeoJSON (.geojson, .json) file. It can be a
              local path, an http(s):// URL, or a blob storage location
              (file://, gs://, or s3://), and can include environment variables.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{sparseCmd.Flags(), mergeCmd.Flags(), distanceCmd.Flags(), closestCmd.Flags()},
		},
		{
			name: "query",
			usage: `
              query is the path to the query geometries, in the same formats
              as reference. For the closest command, it must hold points.`,
			shorthand:  "q",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{sparseCmd.Flags(), distanceCmd.Flags(), closestCmd.Flags()},
		},
		{
			name: "target",
			usage: `
              target is the path to the line network to be conflated onto
              the reference network, in the same formats as reference.`,
			shorthand:  "t",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{mergeCmd.Flags()},
		},
		{
			name: "predicate",
			usage: `
              predicate is the spatial relationship that must hold between a
              reference and a query geometry for them to match. It can be
              'intersects', 'contains' (reference contains query), or
              'within' (reference within query).`,
			shorthand:  "p",
			defaultVal: "intersects",
			flagsets:   []*pflag.FlagSet{sparseCmd.Flags()},
		},
		{
			name: "dist",
			usage: `
              dist is the largest distance between two segments that can
              match, in the units of the input coordinates.`,
			shorthand:  "d",
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{mergeCmd.Flags()},
		},
		{
			name: "slopetolerance",
			usage: `
              slopetolerance is the amount by which the slopes (dy/dx) of two
              matching segments must differ by less than.`,
			defaultVal: 0.1,
			flagsets:   []*pflag.FlagSet{mergeCmd.Flags()},
		},
		{
			name: "proj",
			usage: `
              proj is a spatial reference in Proj4 or WKT format that inputs
              are projected to before processing. Shapefile inputs must then
              have a .prj file; GeoJSON inputs are assumed to be in WGS84
              longitude and latitude. If empty, inputs are used as they are.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{sparseCmd.Flags(), mergeCmd.Flags(), distanceCmd.Flags(), closestCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the path to the output file. Tables can be written as
              .csv, .json or .xlsx; the closest command writes .geojson. It can
              be a blob storage location and can include environment variables.`,
			shorthand:  "o",
			defaultVal: "conflate_output.csv",
			flagsets:   []*pflag.FlagSet{sparseCmd.Flags(), mergeCmd.Flags(), distanceCmd.Flags(), closestCmd.Flags()},
		},
		{
			name: "addr",
			usage: `
              addr is the address the HTTP service listens on.`,
			defaultVal: ":8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "cachesize",
			usage: `
              cachesize is the number of request results the HTTP service
              keeps in memory.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CONFLATE")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // Share the flag created for the first set.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := os.ExpandEnv(Cfg.GetString("config")); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("conflate: problem reading configuration file: %v", err)
		}
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	if Cfg.GetBool("verbose") {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
	return nil
}

// engine returns an engine configured from Cfg.
func engine() *conflate.Engine {
	return &conflate.Engine{
		Procs: Cfg.GetInt("procs"),
		Log:   logrus.StandardLogger(),
	}
}

// settings returns the effective value of every option except config,
// converted to the type of its default value.
func settings() map[string]interface{} {
	s := make(map[string]interface{})
	for _, o := range options {
		if o.name == "config" {
			continue
		}
		v := Cfg.Get(o.name)
		switch o.defaultVal.(type) {
		case string:
			s[o.name] = cast.ToString(v)
		case bool:
			s[o.name] = cast.ToBool(v)
		case int:
			s[o.name] = cast.ToInt(v)
		case float64:
			s[o.name] = cast.ToFloat64(v)
		}
	}
	return s
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "conflate",
	Short: "Spatial joins and road network conflation.",
	Long: `conflate finds which geometries in one set are related to geometries in
another, and matches the lines of two road networks that represent the same roads.
Use the subcommands specified below to access this functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CONFLATE_VAR' where 'VAR' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of conflate.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("conflate v%s\n", conflate.Version)
	},
	DisableAutoGenTag: true,
}

var sparseCmd = &cobra.Command{
	Use:   "sparse",
	Short: "Find geometries related by a spatial predicate",
	Long: `sparse finds, for each reference geometry, the query geometries for which
the spatial predicate holds. The output table holds one row for each matching
pair of 1-based reference and query positions. As JSON, it is a list holding
the matching query positions of each reference geometry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := checkInput("reference", Cfg.GetString("reference"))
		if err != nil {
			return err
		}
		query, err := checkInput("query", Cfg.GetString("query"))
		if err != nil {
			return err
		}
		output, err := checkOutput(Cfg.GetString("output"), tableExtensions...)
		if err != nil {
			return err
		}
		return Sparse(context.Background(), engine(), ref, query,
			Cfg.GetString("predicate"), output, Cfg.GetString("proj"))
	},
	DisableAutoGenTag: true,
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Conflate two road networks",
	Long: `merge matches the lines of the target network to the lines of the reference
network. Two segments match if their slopes differ by less than slopetolerance
and they are no more than dist apart. The output table holds one row for each
matching pair of 1-based reference (i) and target (j) positions, with the
estimated length they share.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := checkInput("reference", Cfg.GetString("reference"))
		if err != nil {
			return err
		}
		target, err := checkInput("target", Cfg.GetString("target"))
		if err != nil {
			return err
		}
		output, err := checkOutput(Cfg.GetString("output"), tableExtensions...)
		if err != nil {
			return err
		}
		return Merge(context.Background(), engine(), ref, target,
			Cfg.GetFloat64("dist"), Cfg.GetFloat64("slopetolerance"), output, Cfg.GetString("proj"))
	},
	DisableAutoGenTag: true,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Calculate distances between pairs of geometries",
	Long: `distance calculates the distance between the reference and query geometries
at each position. If either file holds a single geometry, it is paired with
every geometry in the other.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := checkInput("reference", Cfg.GetString("reference"))
		if err != nil {
			return err
		}
		query, err := checkInput("query", Cfg.GetString("query"))
		if err != nil {
			return err
		}
		output, err := checkOutput(Cfg.GetString("output"), tableExtensions...)
		if err != nil {
			return err
		}
		return Distance(context.Background(), engine(), ref, query, output, Cfg.GetString("proj"))
	},
	DisableAutoGenTag: true,
}

var closestCmd = &cobra.Command{
	Use:   "closest",
	Short: "Find the closest point of each geometry",
	Long: `closest finds the point on each reference geometry that is closest to the
query point at the same position, and writes the points as a GeoJSON
FeatureCollection. Positions where there is no single closest point have
a null geometry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := checkInput("reference", Cfg.GetString("reference"))
		if err != nil {
			return err
		}
		query, err := checkInput("query", Cfg.GetString("query"))
		if err != nil {
			return err
		}
		output, err := checkOutput(Cfg.GetString("output"), ".geojson", ".json")
		if err != nil {
			return err
		}
		return Closest(context.Background(), engine(), ref, query, output, Cfg.GetString("proj"))
	},
	DisableAutoGenTag: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `serve starts an HTTP service with the endpoints POST /sparse and POST /merge,
which take JSON requests holding GeoJSON geometry arrays. Results of recent
requests are kept in memory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := Cfg.GetString("addr")
		s := NewServer(engine(), Cfg.GetInt("cachesize"))
		s.Log.WithField("addr", addr).Info("conflate: starting HTTP service")
		return http.ListenAndServe(addr, s)
	},
	DisableAutoGenTag: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the effective configuration, after reading any configuration
file, environment variables, and command-line arguments, in TOML format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(settings())
	},
	DisableAutoGenTag: true,
}
