// Package config loads the process server configuration from a yaml file
// or from the environment, file taking precedence when present.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server Server `yaml:"server" json:"server"` // configuration of the public REST server
	Name   string `yaml:"name" json:"name" env:"ENGINE_NAME"`
	Engine Engine `yaml:"engine" json:"engine"`
	Log    Log    `yaml:"log" json:"log"`
}

type Server struct {
	Context string `yaml:"context" json:"context" env:"REST_API_CONTEXT" env-default:"/"`
	Addr    string `yaml:"addr" json:"addr" env:"REST_API_ADDR" env-default:":8080"`
}

type Engine struct {
	// ScriptWorkers sets the number of goroutines executing script jobs.
	ScriptWorkers int `yaml:"scriptWorkers" json:"scriptWorkers" env:"ENGINE_SCRIPT_WORKERS" env-default:"4"`
	// ScriptTimeoutSeconds bounds a single script execution.
	ScriptTimeoutSeconds int `yaml:"scriptTimeoutSeconds" json:"scriptTimeoutSeconds" env:"ENGINE_SCRIPT_TIMEOUT_SECONDS" env-default:"30"`
	// DefinitionDir is scanned for .bpmn files deployed at startup.
	DefinitionDir string `yaml:"definitionDir" json:"definitionDir" env:"ENGINE_DEFINITION_DIR"`
}

type Log struct {
	Level string `yaml:"level" json:"level" env:"LOG_LEVEL" env-default:"info"`
}

func InitConfig() Config {
	c := Config{}
	var fileName string
	confFile := os.Getenv("CONFIG_FILE")
	if confFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		fileName = fmt.Sprintf("%s/conf.yaml", wd)
	} else {
		fileName = confFile
	}
	var err error
	if _, perr := os.Stat(fileName); errors.Is(perr, os.ErrNotExist) {
		err = cleanenv.ReadEnv(&c)
		fmt.Printf("Configuration file %s not found. Reading config from ENV.\n", fileName)
	} else {
		err = cleanenv.ReadConfig(fileName, &c)
	}
	if err != nil {
		fmt.Printf("Error occurred while reading the configuration: %s\n", err)
		panic(err)
	}
	return c
}
