package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
)

func TestLoad(t *testing.T) {
	Convey("Load config", t, func() {
		Convey("defaults when no file is given", func() {
			conf, err := Load("")
			So(err, ShouldBeNil)
			So(conf.Mining.MinSupport, ShouldEqual, rds_config.MinSupport)
			So(conf.Mining.Sita, ShouldEqual, rds_config.Sita)
			So(conf.Db.Driver, ShouldEqual, rds_config.DbDriverSqlite)
			So(conf.Server.GinPorts, ShouldResemble, rds_config.GinPorts)
		})

		Convey("yaml file overrides defaults", func() {
			path := filepath.Join(t.TempDir(), "rock.yaml")
			content := "mining:\n  minSupport: 5\n  sita: 0.5\n  labelTimeout: 3s\nlogger:\n  level: debug\n"
			So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)

			conf, err := Load(path)
			So(err, ShouldBeNil)
			So(conf.Mining.MinSupport, ShouldEqual, 5)
			So(conf.Mining.Sita, ShouldEqual, 0.5)
			So(conf.Mining.LabelTimeout, ShouldEqual, 3*time.Second)
			So(conf.Mining.NumIterations, ShouldEqual, rds_config.NumIterations)
			So(conf.Logger.Level, ShouldEqual, "debug")
		})

		Convey("environment overrides file", func() {
			t.Setenv("ROCK_PATTERN_MINING_NUMITERATIONS", "7")
			conf, err := Load("")
			So(err, ShouldBeNil)
			So(conf.Mining.NumIterations, ShouldEqual, 7)
		})

		Convey("invalid sita is rejected", func() {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			So(os.WriteFile(path, []byte("mining:\n  sita: 1.5\n"), 0644), ShouldBeNil)
			_, err := Load(path)
			So(err, ShouldNotBeNil)
		})

		Convey("missing file is an error", func() {
			_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestOverride(t *testing.T) {
	Convey("inline json replaces only the given fields", t, func() {
		conf := Default()
		err := conf.Override(`{"mining":{"minSupport":4,"sita":0.6,"m":2,"numIterations":10,"minCovered":1,"workers":2}}`)
		So(err, ShouldBeNil)
		So(conf.Mining.MinSupport, ShouldEqual, 4)
		So(conf.Mining.Workers, ShouldEqual, 2)
		So(conf.Db.Dsn, ShouldEqual, rds_config.DbDsn)

		So(conf.Override(""), ShouldBeNil)
		So(conf.Override("{"), ShouldNotBeNil)
	})
}

func TestMiningValidate(t *testing.T) {
	Convey("parameter ranges", t, func() {
		m := Default().Mining
		So(m.Validate(), ShouldBeNil)

		bad := m
		bad.MinSupport = 0
		So(bad.Validate(), ShouldNotBeNil)

		bad = m
		bad.M = -1
		So(bad.Validate(), ShouldNotBeNil)

		bad = m
		bad.Workers = 0
		So(bad.Validate(), ShouldNotBeNil)

		bad = m
		bad.Sita = 0
		So(bad.Validate(), ShouldNotBeNil)
	})
}
