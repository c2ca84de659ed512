package agent

import "fmt"

// UnknownAnswer is the canonical phrase the grounded prompts instruct the
// model to emit when the context cannot answer the question. Detection is an
// exact comparison after trimming, not a fuzzy match.
const UnknownAnswer = "I don't know."

const answerWithContextTemplate = `Answer the question as specifically as possible and with as much detail as possible using the provided context. If the answer is not contained within the text below, say "I don't know". Do not speak off topic to the question, make sure to answer the question in full.
Context: %s

Q: %s
A:`

const chatWithContextTemplate = `"You are an AI assistant for Wikipedia. You are given the following extracted parts of a long document and a question. Provide a converstational answer to the question as specifically as possible and with as much detail as possible using the provided context. If the answer is not contained within the extracted text below, say "I don't know". Do not speak off topic to the question, make sure to answer the question in full and do NOT make up an answer.
====
%s
====
Question: %s
Answer:`

const chatEntryTemplate = `Human: %s
AI: %s`

const chatSummarizeTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question by incorporating the conversation history. You should assume that the question is related more to the questions at the end of the history, do not create a new chat history.

===
Chat History:
%s
===
Follow Up Question: %s
Standalone Question:`

const queryGenerationTemplate = `

    Please turn the following question into a list of search queries for wikipedia. Each query should help answer the question and be very specific to the question. Put each query on a line. Limit yourself to three queries and do not include more queries than you need. It is better to have fewer queries.

    Examples:

    Question: Who is Barack Obama and what were his accomplishments?
    Barack Obama

    Question: Can you compare avocadoes to oranges?
    Avocadoes
    Oranges

    Question: When was Joseph Pulitzer born and what is the Pulitzer Prize?
    Joseph Pulitzer
    Pulitzer Prize


    Question: %s
     `

func answerWithContextPrompt(context, question string) string {
	return fmt.Sprintf(answerWithContextTemplate, context, question)
}

func chatWithContextPrompt(context, question string) string {
	return fmt.Sprintf(chatWithContextTemplate, context, question)
}

func chatEntryPrompt(humanText, agentText string) string {
	return fmt.Sprintf(chatEntryTemplate, humanText, agentText)
}

func chatSummarizePrompt(history, question string) string {
	return fmt.Sprintf(chatSummarizeTemplate, history, question)
}

func queryGenerationPrompt(question string) string {
	return fmt.Sprintf(queryGenerationTemplate, question)
}
