package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptConfig はconfigs/prompt.yamlの構造を定義。
// 配信ごとの文脈（番組名や固有の呼び方など）を分類プロンプトに
// 補足するための任意設定です。
type PromptConfig struct {
	Stream struct {
		Name      string `yaml:"name"`
		Performer string `yaml:"performer"`
		Notes     string `yaml:"notes"`
	} `yaml:"stream"`

	Classification struct {
		ExtraInstructions []string `yaml:"extra_instructions"`
		Examples          []struct {
			Text       string `yaml:"text"`
			Attribute  string `yaml:"attribute"`
			Sentiment  string `yaml:"sentiment"`
			IsQuestion bool   `yaml:"is_question"`
		} `yaml:"examples"`
	} `yaml:"classification"`
}

var cachedPromptConfig *PromptConfig

// LoadPromptConfig はYAMLファイルから分類プロンプト設定を読み込む。
// ファイルが存在しない場合はnilを返し、エラーにはなりません。
func LoadPromptConfig() (*PromptConfig, error) {
	if cachedPromptConfig != nil {
		return cachedPromptConfig, nil
	}

	data, err := os.ReadFile("configs/prompt.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("プロンプト設定ファイルの読み込みに失敗: %w", err)
	}

	var cfg PromptConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}

	cachedPromptConfig = &cfg
	return cachedPromptConfig, nil
}

// BuildPromptExtra は設定からシステムプロンプトへの補足テキストを構築
func (c *PromptConfig) BuildPromptExtra() string {
	if c == nil {
		return ""
	}

	var sb strings.Builder

	if c.Stream.Name != "" {
		sb.WriteString("## 配信情報\n")
		sb.WriteString(fmt.Sprintf("- 番組名: %s\n", c.Stream.Name))
		if c.Stream.Performer != "" {
			sb.WriteString(fmt.Sprintf("- 出演者: %s\n", c.Stream.Performer))
		}
		if c.Stream.Notes != "" {
			sb.WriteString(fmt.Sprintf("- 補足: %s\n", c.Stream.Notes))
		}
		sb.WriteString("\n")
	}

	if len(c.Classification.ExtraInstructions) > 0 {
		sb.WriteString("## 追加の分類指示\n")
		for _, inst := range c.Classification.ExtraInstructions {
			sb.WriteString(fmt.Sprintf("- %s\n", inst))
		}
		sb.WriteString("\n")
	}

	if len(c.Classification.Examples) > 0 {
		sb.WriteString("## 分類例\n")
		for _, ex := range c.Classification.Examples {
			sb.WriteString(fmt.Sprintf("- 「%s」 → attribute: %s, sentiment: %s, is_question: %t\n",
				ex.Text, ex.Attribute, ex.Sentiment, ex.IsQuestion))
		}
	}

	return strings.TrimSpace(sb.String())
}
