package main

import (
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/avaraline/iridium/bridge"
)

func main() {
	config := flag.String("config", "iridium.toml", "The configuration file to load.")
	debugMode := flag.Bool("debug", false, "Debug logging? (false = use value from settings)")
	flag.Parse()

	viper := viper.New()
	ext := filepath.Ext(*config)
	viper.SetConfigName(strings.TrimSuffix(filepath.Base(*config), ext))
	viper.SetConfigType(strings.TrimPrefix(ext, "."))
	viper.AddConfigPath(filepath.Dir(*config))

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalln(errors.Wrap(err, "could not read config"))
	}

	viper.SetDefault("irc.name", "Iridium")
	viper.SetDefault("irc.bind", "0.0.0.0")
	viper.SetDefault("irc.port", 6667)
	viper.SetDefault("irc.automap", true)
	viper.SetDefault("discord.trigger", "!")

	if !*debugMode {
		*debugMode = viper.GetBool("debug")
	}
	setLogDebug(*debugMode)

	conf := &bridge.Config{
		ServerName:   viper.GetString("irc.name"),
		Bind:         viper.GetString("irc.bind"),
		Port:         viper.GetInt("irc.port"),
		Password:     viper.GetString("irc.password"),
		Automap:      viper.GetBool("irc.automap"),
		DiscordToken: viper.GetString("discord.token"),
		GuildID:      viper.GetString("discord.guild_id"),
		Trigger:      viper.GetString("discord.trigger"),
	}
	conf.IgnoreChannels = compileGlobs(viper.GetStringSlice("discord.ignore_channels"))
	conf.Channels = channelOptions(viper)
	conf.Commands = commandOptions(viper)

	if conf.DiscordToken == "" {
		log.Fatalln("discord.token is required")
	}

	dib, err := bridge.New(conf)
	if err != nil {
		log.WithError(err).Fatalln("Iridium failed to initialise.")
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	if err := dib.Open(); err != nil {
		log.WithError(err).Fatalln("Iridium failed to start.")
	}

	log.Infoln("Iridium is now running. Press Ctrl-C to exit.")

	// Live-reload channel overrides and the automap flag.
	channels := conf.Channels
	automap := conf.Automap
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Infoln("Configuration file has changed!")

		newChannels := channelOptions(viper)
		newAutomap := viper.GetBool("irc.automap")
		if reflect.DeepEqual(newChannels, channels) && newAutomap == automap {
			return
		}
		channels = newChannels
		automap = newAutomap
		dib.Reconfigure(channels, automap)
	})

	<-sc

	log.Infoln("Shutting down Iridium...")
	dib.Close()
}

func setLogDebug(debug bool) {
	logger := log.StandardLogger()
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

func compileGlobs(patterns []string) []glob.Glob {
	var globs []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			log.WithError(err).WithField("pattern", pattern).Errorln("invalid ignore pattern, skipping")
			continue
		}
		globs = append(globs, g)
	}
	return globs
}

func channelOptions(v *viper.Viper) map[string]bridge.ChannelOptions {
	channels := make(map[string]bridge.ChannelOptions)
	if err := v.UnmarshalKey("channels", &channels); err != nil {
		log.WithError(err).Errorln("could not parse channel overrides")
	}
	return channels
}

func commandOptions(v *viper.Viper) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for name, value := range v.GetStringMap("commands") {
		if opts, ok := value.(map[string]interface{}); ok {
			out[name] = opts
		}
	}
	return out
}
