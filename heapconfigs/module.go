package heapconfigs

import (
	_ "embed"
	"os"
	"path/filepath"

	"github.com/inhies/go-bytesize"
	"github.com/reusee/dscope"
	"github.com/reusee/heaplayout/cmds"
	"github.com/reusee/heaplayout/configs"
	"github.com/reusee/heaplayout/logs"
	"github.com/reusee/heaplayout/vars"
)

type Module struct {
	dscope.Module
	Configs configs.Module
	Logs    logs.Module
}

//go:embed schema.cue
var Schema string

var (
	wordBytesFlag = cmds.Var[int]("-word-bytes")
	placementFlag = cmds.Var[string]("-placement")
	profilingFlag = cmds.Switch("-profiling")
	debugFlag     = cmds.Switch("-debug")
	threadedFlag  = cmds.Switch("-threaded")
	cardBitsFlag  = cmds.Var[int]("-card-bits")
	heapSizeFlag  = cmds.Var[string]("-heap-size")
)

func (Module) ConfigsLoader(
	logger logs.Logger,
) configs.Loader {

	var paths []string
	defer func() {
		if len(paths) > 0 {
			logger.Info("config file",
				"paths", paths,
			)
		}
	}()

	filenames := []string{
		"heaplayout.cue",
		".heaplayout.cue",
	}

	var dirs []string
	if dir, err := os.Getwd(); err == nil {
		dirs = append(dirs, dir)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, "/etc")

	for _, dir := range dirs {
		for _, filename := range filenames {
			path := filepath.Join(dir, filename)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}

	return configs.NewLoader(paths, Schema)
}

func (Module) Config(
	loader configs.Loader,
	logger logs.Logger,
) Config {
	config := Default()

	config.WordBytes = vars.FirstNonZero(
		*wordBytesFlag,
		configs.First[int](loader, "word_bytes"),
		config.WordBytes,
	)
	config.CardBits = vars.FirstNonZero(
		*cardBitsFlag,
		configs.First[int](loader, "card_bits"),
		config.CardBits,
	)
	config.HeapBase = vars.FirstNonZero(
		configs.First[uint64](loader, "heap_base"),
		config.HeapBase,
	)

	if str := vars.FirstNonZero(
		*placementFlag,
		configs.First[string](loader, "placement"),
	); str != "" {
		placement, err := ParsePlacement(str)
		if err != nil {
			panic(err)
		}
		config.Placement = placement
	}

	if str := vars.FirstNonZero(
		*heapSizeFlag,
		configs.First[string](loader, "heap_size"),
	); str != "" {
		size, err := bytesize.Parse(str)
		if err != nil {
			panic(err)
		}
		config.HeapWords = int(uint64(size) / uint64(config.WordBytes))
	}

	config.Profiling = *profilingFlag || vars.DerefOrZero(configs.First[*bool](loader, "profiling"))
	config.Debug = *debugFlag || vars.DerefOrZero(configs.First[*bool](loader, "debug"))
	config.Threaded = *threadedFlag || vars.DerefOrZero(configs.First[*bool](loader, "threaded"))

	if err := config.Validate(); err != nil {
		panic(err)
	}

	logger.Debug("heap config",
		"word_bytes", config.WordBytes,
		"placement", config.Placement.String(),
		"profiling", config.Profiling,
		"debug", config.Debug,
		"threaded", config.Threaded,
		"card_bits", config.CardBits,
		"heap_base", config.HeapBase,
		"heap_words", config.HeapWords,
	)

	return config
}
