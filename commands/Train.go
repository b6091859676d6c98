package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/agent/dqn"
	env "github.com/samuelfneumann/godqn/environment"
	"github.com/samuelfneumann/godqn/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/godqn/environment/classiccontrol/mountaincar"
	"github.com/samuelfneumann/godqn/experiment"
	"github.com/samuelfneumann/godqn/experiment/checkpointer"
	"github.com/samuelfneumann/godqn/experiment/tracker"
	"github.com/samuelfneumann/godqn/initwfn"
	"github.com/samuelfneumann/godqn/network"
	"github.com/samuelfneumann/godqn/replay/monitor"
	"github.com/samuelfneumann/godqn/replay/rpc"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r1"
)

// trainOptions holds the flags of the train command which are not
// part of the agent configuration
type trainOptions struct {
	configFile   string
	environment  string
	steps        int
	episodeSteps int
	hiddenSizes  []int
	activation   string
	init         string
	networkFile  string
	output       string
	monitorAddr  string
	replayAddr   string
	checkpoint   int
	quiet        bool
}

// TrainCommand returns the command which trains a DQN agent on a
// classic control environment
func TrainCommand() *cobra.Command {
	var o trainOptions
	flagConfig := dqn.DefaultConfig()

	command := &cobra.Command{
		Use:   "train",
		Short: "Train a DQN agent on Cartpole or Mountain Car",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := dqn.DefaultConfig()
			if o.configFile != "" {
				var err error
				if c, err = dqn.LoadConfig(o.configFile); err != nil {
					return err
				}
			}

			// Flags override values from the configuration file
			for name, set := range configFlags(flagConfig) {
				if cmd.Flags().Changed(name) {
					set(&c)
				}
			}
			if cmd.Flags().Changed("seed") {
				c.Seed = seed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT,
				syscall.SIGTERM)
			defer stop()
			return train(ctx, c, o)
		},
	}

	flags := command.Flags()
	flags.StringVarP(&o.configFile, "config", "c", "",
		"JSON or YAML agent configuration file")
	flags.StringVarP(&o.environment, "env", "e", "cartpole",
		"Environment to train on (cartpole, mountaincar)")
	flags.IntVar(&o.steps, "steps", 50_000, "Number of environment steps")
	flags.IntVar(&o.episodeSteps, "episode-steps", 500,
		"Maximum number of steps per episode")
	flags.IntSliceVar(&o.hiddenSizes, "hidden", []int{64, 64},
		"Sizes of the hidden layers of the action value network")
	flags.StringVar(&o.activation, "activation", "relu",
		"Activation of the hidden layers (relu, tanh, sigmoid, identity)")
	flags.StringVar(&o.init, "init", "glorot",
		"Weight initialization of the network (glorot, glorot-normal, "+
			"he, he-normal)")
	flags.StringVar(&o.networkFile, "network", "",
		"JSON network definition overriding --hidden, --activation and "+
			"--init")
	flags.StringVarP(&o.output, "output", "o", "results",
		"Directory to save results and checkpoints in")
	flags.StringVar(&o.monitorAddr, "monitor", "",
		"Address to serve the replay monitor on, disabled if empty")
	flags.StringVar(&o.replayAddr, "replay-addr", "",
		"Address of a replay-server to use instead of an in-process "+
			"replay table")
	flags.IntVar(&o.checkpoint, "checkpoint", 0,
		"Checkpoint the learner every this many steps, disabled if 0")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "Hide the progress bar")

	flags.Float64Var(&flagConfig.Epsilon, "epsilon", flagConfig.Epsilon,
		"Exploration probability of the epsilon greedy policy")
	flags.Float64Var(&flagConfig.SamplesPerInsert, "samples-per-insert",
		flagConfig.SamplesPerInsert, "Ratio of samples to replay inserts")
	flags.Float64Var(&flagConfig.LearningRate, "learning-rate",
		flagConfig.LearningRate, "Learning rate of Adam")
	flags.Float64Var(&flagConfig.Discount, "discount", flagConfig.Discount,
		"Discount factor")
	flags.IntVar(&flagConfig.NStep, "n-step", flagConfig.NStep,
		"Number of steps to bootstrap over")
	flags.IntVar(&flagConfig.TargetUpdatePeriod, "target-update-period",
		flagConfig.TargetUpdatePeriod,
		"Learner steps between target network updates")
	flags.Float64Var(&flagConfig.MaxGradientNorm, "max-gradient-norm",
		flagConfig.MaxGradientNorm, "Maximum global gradient norm")
	flags.IntVar(&flagConfig.BatchSize, "batch-size", flagConfig.BatchSize,
		"Number of transitions per learner step")
	flags.IntVar(&flagConfig.MinReplaySize, "min-replay-size",
		flagConfig.MinReplaySize, "Observations made before learning")
	flags.IntVar(&flagConfig.MaxReplaySize, "max-replay-size",
		flagConfig.MaxReplaySize, "Capacity of the replay table")
	flags.Float64Var(&flagConfig.ImportanceSamplingExponent,
		"importance-sampling-exponent",
		flagConfig.ImportanceSamplingExponent,
		"Exponent of the importance sampling weights")
	flags.Float64Var(&flagConfig.PriorityExponent, "priority-exponent",
		flagConfig.PriorityExponent, "Exponent applied to priorities")
	flags.IntVar(&flagConfig.PrefetchSize, "prefetch-size",
		flagConfig.PrefetchSize, "Number of batches to prefetch")

	return command
}

// configFlags maps the name of each configuration flag to a function
// copying the flag's value into a configuration
func configFlags(f dqn.Config) map[string]func(*dqn.Config) {
	return map[string]func(*dqn.Config){
		"epsilon": func(c *dqn.Config) {
			c.Epsilon = f.Epsilon
		},
		"samples-per-insert": func(c *dqn.Config) {
			c.SamplesPerInsert = f.SamplesPerInsert
		},
		"learning-rate": func(c *dqn.Config) {
			c.LearningRate = f.LearningRate
		},
		"discount": func(c *dqn.Config) {
			c.Discount = f.Discount
		},
		"n-step": func(c *dqn.Config) {
			c.NStep = f.NStep
		},
		"target-update-period": func(c *dqn.Config) {
			c.TargetUpdatePeriod = f.TargetUpdatePeriod
		},
		"max-gradient-norm": func(c *dqn.Config) {
			c.MaxGradientNorm = f.MaxGradientNorm
		},
		"batch-size": func(c *dqn.Config) {
			c.BatchSize = f.BatchSize
		},
		"min-replay-size": func(c *dqn.Config) {
			c.MinReplaySize = f.MinReplaySize
		},
		"max-replay-size": func(c *dqn.Config) {
			c.MaxReplaySize = f.MaxReplaySize
		},
		"importance-sampling-exponent": func(c *dqn.Config) {
			c.ImportanceSamplingExponent = f.ImportanceSamplingExponent
		},
		"priority-exponent": func(c *dqn.Config) {
			c.PriorityExponent = f.PriorityExponent
		},
		"prefetch-size": func(c *dqn.Config) {
			c.PrefetchSize = f.PrefetchSize
		},
	}
}

// newEnvironment returns the discrete action environment with the
// given name
func newEnvironment(name string, episodeSteps int,
	seed uint64) (env.Environment, error) {
	switch strings.ToLower(name) {
	case "cartpole":
		bounds := r1.Interval{Min: -0.05, Max: 0.05}
		starter := env.NewUniformStarter([]r1.Interval{bounds, bounds,
			bounds, bounds}, seed)

		task, err := cartpole.NewBalance(starter, episodeSteps,
			cartpole.FailAngle)
		if err != nil {
			return nil, err
		}
		e, _, err := cartpole.NewDiscrete(task, 1.0)
		return e, err

	case "mountaincar":
		starter := env.NewUniformStarter([]r1.Interval{
			{Min: -0.6, Max: -0.4},
			{Min: 0, Max: 0},
		}, seed)

		task, err := mountaincar.NewGoal(starter, episodeSteps,
			mountaincar.GoalPosition)
		if err != nil {
			return nil, err
		}
		e, _, err := mountaincar.NewDiscrete(task, 1.0)
		return e, err
	}

	return nil, fmt.Errorf("no such environment %q", name)
}

// train trains a DQN agent and saves the results to the
// output directory
func train(ctx context.Context, c dqn.Config, o trainOptions) error {
	if err := os.MkdirAll(o.output, 0755); err != nil {
		return fmt.Errorf("train: %v", err)
	}
	if err := writeConfigFile(filepath.Join(o.output, "config.yaml"),
		c); err != nil {
		return fmt.Errorf("train: %v", err)
	}

	e, err := newEnvironment(o.environment, o.episodeSteps, c.Seed)
	if err != nil {
		return fmt.Errorf("train: could not create environment: %v", err)
	}

	net, err := newNetwork(o, c.Seed)
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}
	if err := writeJSONFile(filepath.Join(o.output, "network.json"),
		net); err != nil {
		return fmt.Errorf("train: %v", err)
	}

	agent, closeAgent, err := newAgent(ctx, env.MakeEnvironmentSpec(e), net,
		c, o.replayAddr)
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}
	defer closeAgent()

	if o.monitorAddr != "" && o.replayAddr != "" {
		log.Infof("train: the monitor of a remote replay is served by " +
			"replay-server, ignoring --monitor")
	} else if o.monitorAddr != "" {
		m, err := monitor.New(agent.Replay().Server)
		if err != nil {
			return fmt.Errorf("train: %v", err)
		}
		go func() {
			if err := m.ListenAndServe(ctx, o.monitorAddr); err != nil {
				log.Errorf("train: %v", err)
			}
		}()
	}

	title := fmt.Sprintf("DQN on %v", o.environment)
	trackers := []tracker.Tracker{
		tracker.NewReturn(filepath.Join(o.output, "returns.bin")),
		tracker.NewEpisodeLength(filepath.Join(o.output, "lengths.bin")),
		tracker.NewPlot(filepath.Join(o.output, "returns.png"), title),
		tracker.NewHTML(filepath.Join(o.output, "returns.html"), title),
	}

	var checkpointers []checkpointer.Checkpointer
	if o.checkpoint > 0 {
		check, err := checkpointer.NewNStep(o.checkpoint, agent.Learner(),
			checkpointer.FilenameEnumerator(0,
				filepath.Join(o.output, "learner"), ".bin"))
		if err != nil {
			return fmt.Errorf("train: %v", err)
		}
		checkpointers = append(checkpointers, check)
	}

	exp, err := experiment.NewOnline(e, agent, o.steps, trackers,
		checkpointers)
	if err != nil {
		return fmt.Errorf("train: %v", err)
	}
	if !o.quiet {
		exp.ShowProgress(os.Stdout)
	}

	log.Infof("training for %v steps, results in %v", o.steps, o.output)
	runErr := exp.Run(ctx)

	// Save whatever was tracked, even if training was interrupted
	if err := exp.Save(); err != nil {
		return fmt.Errorf("train: %v", err)
	}
	if err := agent.Learner().Save(filepath.Join(o.output,
		"learner.bin")); err != nil {
		return fmt.Errorf("train: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("train: %w", runErr)
	}

	log.Successf("finished %v episodes with %v learner steps",
		exp.Episodes(), agent.Learner().Steps())
	return nil
}

// newAgent creates a DQN agent on an in-process replay table, or on
// the remote table at replayAddr if it is not empty. The returned
// function closes the agent and its connection to the table.
func newAgent(ctx context.Context, spec env.EnvironmentSpec,
	net network.Definition, c dqn.Config, replayAddr string) (*dqn.DQN,
	func() error, error) {
	if replayAddr == "" {
		agent, err := dqn.NewFromConfig(spec, net, c)
		if err != nil {
			return nil, nil, err
		}
		return agent, agent.Close, nil
	}

	client, err := rpc.Dial(ctx, replayAddr)
	if err != nil {
		return nil, nil, err
	}
	info, err := client.ServerInfo()
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("could not reach replay at %v: %v",
			replayAddr, err)
	}
	log.Infof("using replay at %v holding %v of %v items", replayAddr,
		info.Size, info.MaxSize)

	agent, err := dqn.NewFromTable(spec, net, client, c)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	closeAll := func() error {
		err := agent.Close()
		if cerr := client.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return agent, closeAll, nil
}

// newNetwork returns the network definition read from the network
// file of o, or described by its flags if no file is given
func newNetwork(o trainOptions, seed uint64) (network.MLP, error) {
	if o.networkFile != "" {
		data, err := os.ReadFile(o.networkFile)
		if err != nil {
			return network.MLP{}, err
		}
		var net network.MLP
		if err := json.Unmarshal(data, &net); err != nil {
			return network.MLP{}, fmt.Errorf("could not decode %v: %v",
				o.networkFile, err)
		}
		if len(net.Biases) != len(net.HiddenSizes) ||
			len(net.Activations) != len(net.HiddenSizes) {
			return network.MLP{}, fmt.Errorf("%v: each hidden layer needs "+
				"a bias and an activation", o.networkFile)
		}
		return net, nil
	}

	activation, err := network.ActivationByName(o.activation)
	if err != nil {
		return network.MLP{}, err
	}
	initWFn, err := newInitWFn(o.init, seed)
	if err != nil {
		return network.MLP{}, err
	}
	return network.NewMLP(o.hiddenSizes,
		func() *network.Activation { return activation }, initWFn), nil
}

// newInitWFn returns the weight initializer with the given name
func newInitWFn(name string, seed uint64) (*initwfn.InitWFn, error) {
	switch strings.ToLower(name) {
	case "glorot":
		return initwfn.NewGlorotU(1.0, seed)
	case "glorot-normal":
		return initwfn.NewGlorotN(1.0, seed)
	case "he":
		return initwfn.NewHeU(1.0)
	case "he-normal":
		return initwfn.NewHeN(1.0)
	}
	return nil, fmt.Errorf("no such weight initialization %q", name)
}

func writeJSONFile(filename string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func writeConfigFile(filename string, c dqn.Config) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeConfig(file, c)
}
