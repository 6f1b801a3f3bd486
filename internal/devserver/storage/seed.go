package storage

import "github.com/pribylovaa/aihub-client/internal/models"

func seedPapers() []models.Paper {
	const ts = "2024-01-01T00:00:00Z"

	paper := func(id, arxiv, title, abstract, published string) models.Paper {
		return models.Paper{
			ID:            id,
			Title:         title,
			Abstract:      &abstract,
			ArxivID:       &arxiv,
			PublishedDate: &published,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
	}

	return []models.Paper{
		paper("p-attention", "1706.03762", "Attention Is All You Need",
			"The dominant sequence transduction models are based on complex recurrent or convolutional neural networks. We propose the Transformer, based solely on attention mechanisms.",
			"2017-06-12"),
		paper("p-bert", "1810.04805", "BERT: Pre-training of Deep Bidirectional Transformers for Language Understanding",
			"We introduce a new language representation model called BERT, designed to pre-train deep bidirectional representations from unlabeled text.",
			"2018-10-11"),
		paper("p-rag", "2005.11401", "Retrieval-Augmented Generation for Knowledge-Intensive NLP Tasks",
			"We explore a general-purpose fine-tuning recipe for retrieval-augmented generation models which combine pre-trained parametric and non-parametric memory.",
			"2020-05-22"),
		paper("p-lora", "2106.09685", "LoRA: Low-Rank Adaptation of Large Language Models",
			"We propose Low-Rank Adaptation, which freezes the pre-trained model weights and injects trainable rank decomposition matrices into each layer of the Transformer.",
			"2021-06-17"),
		paper("p-cot", "2201.11903", "Chain-of-Thought Prompting Elicits Reasoning in Large Language Models",
			"We explore how generating a chain of thought, a series of intermediate reasoning steps, significantly improves the ability of large language models to perform complex reasoning.",
			"2022-01-28"),
	}
}
