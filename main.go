// Package main provides the lectern CLI: paragraph-granular audio playback
// for long-form text files.
package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/lectern/internal/cache"
	"github.com/dgnsrekt/lectern/internal/library"
	"github.com/dgnsrekt/lectern/internal/stats"
	"github.com/dgnsrekt/lectern/player"
	"github.com/dgnsrekt/lectern/player/audio"
	"github.com/dgnsrekt/lectern/player/backend"
)

var (
	// Version as provided by goreleaser.
	Version = ""

	configFile string
	engineFlag string
	rateFlag   float64
	fromFlag   int
	debug      bool

	rootCmd = &cobra.Command{
		Use:          "lectern [FILE]",
		Short:        "Listen to long-form text, paragraph by paragraph",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: auto)")
	rootCmd.Flags().StringVarP(&engineFlag, "engine", "e", "", "synthesis engine: remote, local or mock")
	rootCmd.Flags().Float64VarP(&rateFlag, "rate", "r", 0, "playback rate (0.5 to 3.0)")
	rootCmd.Flags().IntVar(&fromFlag, "from", -1, "paragraph index to start from (default: saved position)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "verbose logging")

	rootCmd.AddCommand(configCmd)
}

func initConfig() {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err == nil {
			log.Debug("using config file", "path", viper.ConfigFileUsed())
		}
		return
	}

	scope := gap.NewScope(gap.User, "lectern")
	dirs, err := scope.ConfigDirs()
	if err != nil || len(dirs) == 0 {
		log.Warn("could not resolve configuration directory", "error", err)
		return
	}
	for _, dir := range dirs {
		viper.AddConfigPath(dir)
	}
	viper.SetConfigName("lectern")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err == nil {
		log.Debug("using config file", "path", viper.ConfigFileUsed())
	}
	// Fresh install: no config file anywhere yet. Point at the default
	// location so `lectern config` creates it there.
	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "lectern.yaml")
	}
}

func run(path string) error {
	logger := log.Default()

	cfg, err := player.LoadConfig()
	if err != nil {
		return err
	}
	if engineFlag != "" {
		cfg.Engine = engineFlag
	}
	if rateFlag > 0 {
		cfg.Rate = rateFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	logger.Info("loaded", "title", doc.Title, "paragraphs", doc.Total())

	out, err := audio.NewPlayer(cfg.SampleRate, logger)
	if err != nil {
		return err
	}

	be, err := backend.Select(cfg, out, logger)
	if err != nil {
		return err
	}
	logger.Info("engine selected", "engine", be.Name())

	lease := player.NewBackgroundLease(
		func() { logger.Debug("background renders in flight") },
		func() { logger.Debug("background renders drained") },
	)

	var renderCache player.RenderCache
	if be.IsRemote() {
		dir := cfg.CacheDir
		if dir == "" {
			if dir, err = defaultCacheDir(); err != nil {
				return err
			}
		}
		c, err := cache.New(be.Render, dir, lease, logger)
		if err != nil {
			return err
		}
		renderCache = c
	}

	storeDir, err := library.DefaultDir()
	if err != nil {
		return err
	}
	store, err := library.NewStore(storeDir)
	if err != nil {
		return err
	}

	session, err := player.NewSession(cfg, player.Dependencies{
		Backend:   be,
		Cache:     renderCache,
		Player:    out,
		Store:     store,
		Telemetry: stats.NewRecorder(logger),
		Publisher: logPublisher{logger: logger},
		Lease:     lease,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	initialIndex := 0
	if fromFlag >= 0 {
		initialIndex = fromFlag
	} else if saved, ok, err := store.Load(doc.ID); err == nil && ok {
		initialIndex = saved
	}

	if err := session.LoadBook(doc, initialIndex); err != nil {
		return err
	}
	player.WatchRate(session.SetRate)

	if err := session.Play(); err != nil {
		return err
	}

	return controlLoop(session, logger)
}

// controlLoop reads transport commands from stdin until EOF, quit or an
// interrupt.
func controlLoop(session *player.Session, logger *log.Logger) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	fmt.Println("commands: play, pause, next, prev, seek <0-100>, rate <0.5-3.0>, status, quit")
	for {
		select {
		case <-sig:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "play":
				session.HandleRemoteCommand(player.CommandPlay)
			case "pause":
				session.HandleRemoteCommand(player.CommandPause)
			case "next":
				session.HandleRemoteCommand(player.CommandNext)
			case "prev":
				session.HandleRemoteCommand(player.CommandPrevious)
			case "seek":
				if len(fields) == 2 {
					if pct, err := strconv.ParseFloat(fields[1], 64); err == nil {
						session.Seek(pct / 100)
					}
				}
			case "rate":
				if len(fields) == 2 {
					if rate, err := strconv.ParseFloat(fields[1], 64); err == nil {
						session.SetRate(rate)
					}
				}
			case "status":
				printStatus(session.Snapshot())
			case "quit", "q", "exit":
				return nil
			default:
				logger.Warn("unknown command", "command", fields[0])
			}
		}
	}
}

func printStatus(snap player.Snapshot) {
	fmt.Printf("%s  paragraph %d/%d  %s  elapsed %s  remaining %s  rate %.2fx",
		snap.State, snap.CurrentParagraph+1, snap.TotalParagraphs,
		snap.Percentage, snap.TimeElapsed, snap.TimeRemaining, snap.Rate)
	if snap.ErrorMessage != "" {
		fmt.Printf("  error: %s", snap.ErrorMessage)
	}
	fmt.Println()
}

// loadDocument reads a UTF-8 text file and splits it on blank lines into
// trimmed paragraphs. The book identity derives from the absolute path, so
// reopening the same file resumes the same book.
func loadDocument(path string) (player.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return player.Document{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return player.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}

	paragraphs := splitParagraphs(string(data))
	if len(paragraphs) == 0 {
		return player.Document{}, player.ErrEmptyDocument
	}

	sum := sha256.Sum256([]byte(abs))
	return player.Document{
		ID:         hex.EncodeToString(sum[:6]),
		Title:      strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
		Paragraphs: paragraphs,
	}, nil
}

// splitParagraphs breaks text on blank lines, joining wrapped lines inside
// a paragraph with single spaces.
func splitParagraphs(text string) []string {
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		joined := strings.Join(strings.Fields(block), " ")
		if joined != "" {
			out = append(out, joined)
		}
	}
	return out
}

func defaultCacheDir() (string, error) {
	scope := gap.NewScope(gap.User, "lectern")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache dir: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// logPublisher is a stand-in media-session integration that logs
// now-playing snapshots instead of registering with a host OS facility.
type logPublisher struct {
	logger *log.Logger
}

func (p logPublisher) Publish(np player.NowPlaying) {
	p.logger.Debug("now playing",
		"title", np.Title,
		"elapsed", player.FormatClock(np.ElapsedSeconds),
		"duration", player.FormatClock(np.DurationSeconds),
		"rate", np.Rate,
		"playing", np.Playing)
}
