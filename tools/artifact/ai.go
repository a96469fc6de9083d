package artifact

import (
	"strings"
)

// ModelArchitectInput is the input of the model_architect tool.
type ModelArchitectInput struct {
	Requirements map[string]any `json:"requirements" yaml:"requirements" validate:"required" jsonschema:"title=Requirements,description=Model requirements such as task_type and data_type and performance targets."`
	DesignType   string         `json:"design_type" yaml:"design_type" jsonschema:"title=Design Type,description=Type of design to produce.,enum=model_architecture,enum=training_pipeline,enum=deployment_strategy,enum=optimization"`
	Constraints  map[string]any `json:"constraints,omitempty" yaml:"constraints,omitempty" jsonschema:"title=Constraints,description=Optional constraints such as latency or memory or budget."`
}

// modelFamily is the recommended model for a data type and task.
type modelFamily struct {
	Recommended  string
	Alternatives []string
	Framework    string
}

// modelFamilies is keyed by data type, then by task type.
// The empty task type is the default of the data type.
var modelFamilies = map[string]map[string]modelFamily{
	"text": {
		"classification": {"BERT/RoBERTa based classifier", []string{"DistilBERT", "XLNet", "ALBERT"}, "PyTorch"},
		"generation":     {"GPT-style transformer", []string{"T5", "BART", "OPT"}, "PyTorch"},
		"translation":    {"Encoder-decoder transformer", []string{"mBART", "M2M100", "NLLB"}, "PyTorch"},
		"":               {"Transformer", []string{"LSTM", "CNN for text"}, "PyTorch"},
	},
	"image": {
		"classification": {"CNN/Vision Transformer", []string{"EfficientNet", "DenseNet", "RegNet"}, "TensorFlow"},
		"detection":      {"YOLO/Faster R-CNN", []string{"RetinaNet", "EfficientDet", "DETR"}, "PyTorch"},
		"segmentation":   {"U-Net/Mask R-CNN", []string{"DeepLab", "SegFormer", "PanopticFPN"}, "PyTorch"},
		"":               {"CNN", []string{"ResNet", "Vision Transformer"}, "TensorFlow"},
	},
	"tabular": {
		"classification": {"Gradient Boosting/Neural Network", []string{"XGBoost", "LightGBM", "CatBoost"}, "XGBoost"},
		"regression":     {"Neural Network/Random Forest", []string{"LightGBM", "XGBoost", "TabNet"}, "LightGBM"},
		"ranking":        {"LambdaMART/Neural Ranking", []string{"RankNet", "LambdaRank", "MART"}, "LightGBM"},
		"":               {"Gradient Boosting", []string{"Random Forest", "TabNet"}, "XGBoost"},
	},
	"time_series": {
		"forecasting":       {"Temporal Fusion Transformer", []string{"DeepAR", "N-BEATS", "Prophet"}, "PyTorch"},
		"anomaly_detection": {"LSTM Autoencoder", []string{"Isolation Forest", "Temporal CNN"}, "TensorFlow"},
		"":                  {"Temporal Convolutional Network", []string{"LSTM", "ARIMA"}, "PyTorch"},
	},
}

var customModel = modelFamily{
	Recommended:  "Custom Architecture",
	Alternatives: []string{"Custom Model"},
	Framework:    "PyTorch",
}

func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// recommendModel returns the model family for the data and task types.
func recommendModel(dataType, taskType string) modelFamily {
	byTask, ok := modelFamilies[normalize(dataType)]
	if !ok {
		return customModel
	}
	if m, ok := byTask[normalize(taskType)]; ok {
		return m
	}
	return byTask[""]
}

func specString(spec map[string]any, key string) string {
	s, _ := spec[key].(string)
	return s
}

// NewModelArchitect returns the tool to design ML model architectures.
func NewModelArchitect() (*Tool[ModelArchitectInput], error) {
	return newTool(definition[ModelArchitectInput]{
		name:        ModelArchitectName,
		description: "Designs the ML model architecture, the training pipeline, the deployment strategy or the optimization plan for the requirements.",
		label:       "design",
		selectorKey: "design_type",
		selectors:   []string{"model_architecture", "training_pipeline", "deployment_strategy", "optimization"},
		args: func(req *ModelArchitectInput) *args {
			return &args{
				selector: req.DesignType,
				data: map[string]any{
					"Spec":        req.Requirements,
					"Constraints": req.Constraints,
					"Model":       recommendModel(specString(req.Requirements, "data_type"), specString(req.Requirements, "task_type")),
				},
			}
		},
	})
}

// ModelTrainerInput is the input of the model_trainer tool.
type ModelTrainerInput struct {
	TrainingConfig   map[string]any `json:"training_config" yaml:"training_config" validate:"required" jsonschema:"title=Training Configuration,description=Training configuration including model and data settings and hyperparameters."`
	TrainingPhase    string         `json:"training_phase" yaml:"training_phase" jsonschema:"title=Training Phase,description=Phase of training.,enum=preprocessing,enum=training,enum=evaluation,enum=optimization"`
	MonitoringConfig map[string]any `json:"monitoring_config,omitempty" yaml:"monitoring_config,omitempty" jsonschema:"title=Monitoring Configuration,description=Optional configuration for monitoring the training progress."`
}

// NewModelTrainer returns the tool to plan the training phases.
func NewModelTrainer() (*Tool[ModelTrainerInput], error) {
	return newTool(definition[ModelTrainerInput]{
		name:        ModelTrainerName,
		description: "Plans a model training phase: data preprocessing, training, evaluation or optimization.",
		label:       "training phase",
		selectorKey: "training_phase",
		selectors:   []string{"preprocessing", "training", "evaluation", "optimization"},
		args: func(req *ModelTrainerInput) *args {
			return &args{
				selector: req.TrainingPhase,
				data: map[string]any{
					"Spec":       req.TrainingConfig,
					"Monitoring": req.MonitoringConfig,
				},
			}
		},
	})
}
