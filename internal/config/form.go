package config

// FormConfig holds the report header defaults and narrative templates.
// Templates use text/template syntax with {{.Name}} bound to the group's
// display name.
type FormConfig struct {
	Requester      string           `yaml:"requester"`
	Urgency        string           `yaml:"urgency"`
	OccurrenceType string           `yaml:"occurrence_type"`
	DateFormat     string           `yaml:"date_format"`
	Narratives     NarrativesConfig `yaml:"narratives"`

	// DemotePartialRows reports a row whose optional fields did not all
	// bind as Failed instead of Submitted.
	DemotePartialRows bool `yaml:"demote_partial_rows"`
}

// NarrativesConfig holds the four free-text blocks of a report.
type NarrativesConfig struct {
	ObjectiveNucleus    string `yaml:"objective_nucleus"`
	ObjectiveProperty   string `yaml:"objective_property"`
	Diagnosis           string `yaml:"diagnosis"`
	LessonsLearned      string `yaml:"lessons_learned"`
	FinalConsiderations string `yaml:"final_considerations"`
}

// DefaultFormConfig returns the texts the reports are normally filed with.
func DefaultFormConfig() FormConfig {
	return FormConfig{
		Requester:      "Geocat",
		Urgency:        "Média",
		OccurrenceType: "Sinistro",
		DateFormat:     "02/01/2006",
		Narratives: NarrativesConfig{
			ObjectiveNucleus: "O presente relatório foi elaborado por solicitação do GEOCAT com o objetivo de avaliar os efeitos dos sinistros nos plantios do Núcleo {{.Name}} e determinar as recomendações para as áreas avaliadas em campo pela área de Mensuração.",

			ObjectiveProperty: "O presente relatório foi elaborado por solicitação do GEOCAT com o objetivo de avaliar os efeitos dos sinistros nos plantios da Fazenda {{.Name}} e determinar as recomendações para as áreas avaliadas em campo pela área de Mensuração.",

			Diagnosis: `Foi objeto deste Laudo as áreas afetadas por incêndios florestais e vendaval (Déficit Hídrico), conforme as características de danos a seguir:

Seca e mortalidade dos plantios devido ao fogo ou déficit hídrico em diferentes níveis de severidade;

Inclinação, tombamento e quebra de árvores devido a ocorrência de vendaval.

Para as ocorrências foram observados danos em reboleiras de diferentes tamanhos de área (ha) e intensidade dentro dos talhões.`,

			LessonsLearned: "As visitas de campo juntamente com imagens de drones são fundamentais para a tomada de decisão. As ocorrências de sinistros são dinâmicas e, desta forma, é fundamental aguardar o tempo recomendado para a verificação da recuperação das plantas bem como manter as informações atualizadas, especialmente nas ocorrências de Déficit Hídrico e Incêndios Florestais. A efetivação da baixa e tratativas devem ocorrer imediatamente após a liberação do laudo, evitando-se retrabalho e dificuldades na rastreabilidade de todo o processo, assim como o comprometimento da produtividade no site.",

			FinalConsiderations: `Face ao exposto, com a avaliação de ha, recomenda-se:

O valor total imobilizado a ser apurado como prejuízo será de R$ X (XX reais e XXXX centavos), informado pela área Contábil. Vale ressaltar que o montante descrito pode sofrer alterações entre o período de emissão, assinaturas e devida baixa dos ativos; no momento da baixa, a Gestão Patrimonial fará a atualização e manterá comprovação anexa ao laudo. A destinação da madeira e eventuais dificuldades operacionais não foram objeto deste laudo.

As recomendações são por UP, considerando a ocorrência de maior abrangência; pode, contudo, existir mais de um tipo de sinistro na mesma UP, sendo necessária uma avaliação detalhada do microplanejamento quanto ao aproveitamento da madeira.

O laudo foi elaborado com base em croquis e fotos fornecidos pela equipe de mensuração florestal. A ausência de imagens aéreas de alta resolução e a falta de visitas de campo por parte dos extensionistas prejudicam a avaliação detalhada das UPs. Assim, se a equipe de Silvicultura, durante a execução das ações recomendadas, constatar divergências em campo, recomenda-se delimitar a área divergente a ser aproveitada e solicitar uma análise adicional à equipe de extensão tecnológica.`,
		},
	}
}
