package params

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Params is one profile ("test" or "prod") of the configuration document.
type Params struct {
	Profile string      `mapstructure:"-"`
	Model   ModelPars   `mapstructure:"model_pars"`
	Data    DataPars    `mapstructure:"data_pars"`
	Compute ComputePars `mapstructure:"compute_pars"`
	Out     OutPars     `mapstructure:"out_pars"`
}

type ModelPars struct {
	DimChannel   int     `mapstructure:"dim_channel"`   // feature maps per window size
	KernelHeight []int   `mapstructure:"kernel_height"` // convolution window sizes, in tokens
	DropoutRate  float64 `mapstructure:"dropout_rate"`
	NumClass     int     `mapstructure:"num_class"`
}

type DataPars struct {
	DataPath      string  `mapstructure:"data_path"`
	Frac          float64 `mapstructure:"frac"` // share of rows that go to the train split
	Lang          string  `mapstructure:"lang"`
	PretrainedEmb string  `mapstructure:"pretrained_emb"` // e.g. glove.6B.300d, "" for none
	VectorsDir    string  `mapstructure:"vectors_dir"`
	EmbedDim      int     `mapstructure:"embed_dim"`
	UnkInit       string  `mapstructure:"unk_init"` // "zero" or "random"
	BatchSize     int     `mapstructure:"batch_size"`
	ValBatchSize  int     `mapstructure:"val_batch_size"`
	SplitIfExists bool    `mapstructure:"split_if_exists"`
	FixLength     int     `mapstructure:"fix_length"` // 0 keeps full sequences
	MaxVocab      int     `mapstructure:"max_vocab"`  // 0 = unlimited
	MinFreq       int     `mapstructure:"min_freq"`
	Shuffle       bool    `mapstructure:"shuffle"`
	Seed          int64   `mapstructure:"seed"`
}

type ComputePars struct {
	LearningRate float64 `mapstructure:"learning_rate"`
	Epochs       int     `mapstructure:"epochs"`
	Device       string  `mapstructure:"device"`
	Workers      int     `mapstructure:"workers"` // <=0 picks one per physical core
	AdamBeta1    float64 `mapstructure:"adam_beta1"`
	AdamBeta2    float64 `mapstructure:"adam_beta2"`
	AdamEps      float64 `mapstructure:"adam_eps"`
	WeightDecay  float64 `mapstructure:"weight_decay"`
	GradClip     float64 `mapstructure:"grad_clip"` // <=0 disables
}

type OutPars struct {
	CheckpointDir string `mapstructure:"checkpointdir"`
	TrainPath     string `mapstructure:"train_path"`
	ValidPath     string `mapstructure:"valid_path"`
	LogPath       string `mapstructure:"log_path"`
	MetricsPath   string `mapstructure:"metrics_path"`
}

const (
	DefaultConfigPath = "config/textcnn.json"
	DefaultProfile    = "test"
	CheckpointName    = "best_accuracy"
	EnvPrefix         = "TEXTCNN"
)

var profiles = []string{"test", "prod"}

var requiredKeys = []string{
	"model_pars.dim_channel",
	"model_pars.kernel_height",
	"model_pars.dropout_rate",
	"model_pars.num_class",
	"data_pars.data_path",
	"data_pars.pretrained_emb",
	"data_pars.batch_size",
	"data_pars.val_batch_size",
	"compute_pars.learning_rate",
	"compute_pars.epochs",
	"out_pars.checkpointdir",
	"out_pars.train_path",
	"out_pars.valid_path",
}

// LoadFromEnv resolves the config path and profile from TEXTCNN_CONFIG and
// TEXTCNN_PROFILE and loads that profile.
func LoadFromEnv() (*Params, error) {
	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.AutomaticEnv()
	env.SetDefault("config", DefaultConfigPath)
	env.SetDefault("profile", DefaultProfile)
	return Load(env.GetString("config"), env.GetString("profile"))
}

// Load reads the JSON document at path and decodes the named profile.
// Leaf keys of the profile can be overridden from the environment, e.g.
// TEXTCNN_COMPUTE_PARS_EPOCHS=3. Relative paths inside the profile are
// resolved against the directory holding the config file.
func Load(path, profile string) (*Params, error) {
	if !isProfile(profile) {
		return nil, &ConfigError{Profile: profile, Reason: fmt.Sprintf("unknown profile, want one of %v", profiles)}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Profile: profile, Reason: "read " + path, cause: err}
	}

	sub := v.Sub(profile)
	if sub == nil {
		return nil, &ConfigError{Profile: profile, Missing: []string{profile}}
	}
	setDefaults(sub)
	bindEnv(sub)

	var missing []string
	for _, k := range requiredKeys {
		if !sub.IsSet(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Profile: profile, Missing: missing}
	}

	p := &Params{Profile: profile}
	if err := sub.Unmarshal(p); err != nil {
		return nil, &ConfigError{Profile: profile, Reason: "decode", cause: err}
	}
	p.resolvePaths(filepath.Dir(path))
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// bindEnv gives every known key an explicit variable name. A Sub viper
// would otherwise put the profile name into the variable, as in
// TEXTCNN_TEST_COMPUTE_PARS_EPOCHS.
func bindEnv(v *viper.Viper) {
	keys := append(v.AllKeys(), requiredKeys...)
	for _, k := range keys {
		_ = v.BindEnv(k, EnvVar(k))
	}
}

// EnvVar is the environment variable that overrides key.
func EnvVar(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_pars.frac", 0.7)
	v.SetDefault("data_pars.lang", "en")
	v.SetDefault("data_pars.vectors_dir", ".vector_cache")
	v.SetDefault("data_pars.embed_dim", 300)
	v.SetDefault("data_pars.unk_init", "zero")
	v.SetDefault("data_pars.min_freq", 1)
	v.SetDefault("data_pars.shuffle", true)
	v.SetDefault("data_pars.seed", 42)

	v.SetDefault("compute_pars.device", "cpu")
	v.SetDefault("compute_pars.adam_beta1", 0.9)
	v.SetDefault("compute_pars.adam_beta2", 0.999)
	v.SetDefault("compute_pars.adam_eps", 1e-8)

	v.SetDefault("out_pars.log_path", "training_log.csv")
	v.SetDefault("out_pars.metrics_path", "metrics.prom")
}

func (p *Params) resolvePaths(base string) {
	p.Data.DataPath = resolve(base, p.Data.DataPath)
	p.Data.VectorsDir = resolve(base, p.Data.VectorsDir)
	p.Out.CheckpointDir = resolve(base, p.Out.CheckpointDir)
	p.Out.TrainPath = resolve(base, p.Out.TrainPath)
	p.Out.ValidPath = resolve(base, p.Out.ValidPath)
	// log and metrics files live next to the checkpoint unless absolute
	p.Out.LogPath = resolve(p.Out.CheckpointDir, p.Out.LogPath)
	p.Out.MetricsPath = resolve(p.Out.CheckpointDir, p.Out.MetricsPath)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// CheckpointPath is the fixed location of the best-accuracy snapshot.
func (p *Params) CheckpointPath() string {
	return filepath.Join(p.Out.CheckpointDir, CheckpointName)
}

// Validate checks value ranges that decoding alone cannot catch.
func (p *Params) Validate() error {
	var bad []string
	check := func(ok bool, msg string) {
		if !ok {
			bad = append(bad, msg)
		}
	}
	check(p.Model.DimChannel > 0, "model_pars.dim_channel must be > 0")
	check(len(p.Model.KernelHeight) > 0, "model_pars.kernel_height must not be empty")
	check(p.Model.DropoutRate >= 0 && p.Model.DropoutRate < 1, "model_pars.dropout_rate must be in [0,1)")
	check(p.Model.NumClass > 1, "model_pars.num_class must be > 1")
	check(p.Data.Frac > 0 && p.Data.Frac <= 1, "data_pars.frac must be in (0,1]")
	check(p.Data.EmbedDim > 0, "data_pars.embed_dim must be > 0")
	check(p.Data.UnkInit == "zero" || p.Data.UnkInit == "random", `data_pars.unk_init must be "zero" or "random"`)
	check(p.Data.BatchSize > 0, "data_pars.batch_size must be > 0")
	check(p.Data.ValBatchSize > 0, "data_pars.val_batch_size must be > 0")
	check(p.Data.FixLength >= 0, "data_pars.fix_length must be >= 0")
	check(p.Compute.LearningRate > 0, "compute_pars.learning_rate must be > 0")
	check(p.Compute.Epochs > 0, "compute_pars.epochs must be > 0")
	check(p.Compute.Device == "cpu", `compute_pars.device must be "cpu"`)
	if len(bad) == 0 {
		return nil
	}
	return &ConfigError{Profile: p.Profile, Reason: strings.Join(bad, "; ")}
}

func isProfile(name string) bool {
	for _, p := range profiles {
		if p == name {
			return true
		}
	}
	return false
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
