package prompts

// DocQAPromptTmpl is the literal prompt composed by the query pipeline
// for every ask() call, grounded on
// original_source/backend/app/services/llm.py's prompt string.
const DocQAPromptTmpl = `Based on the following context information, please provide a comprehensive and accurate answer to the question. If the context doesn't contain sufficient information to answer the question completely, please state what you can determine from the context and clearly indicate what information is missing.

CONTEXT:
{context_str}

QUESTION: {query_str}

INSTRUCTIONS:
- Provide a clear, direct answer based only on the information in the context
- If you cannot find the answer in the context, say "I don't have enough information in the provided context to answer this question"
- Be specific and cite relevant details from the context when possible (e.g., [Source X: Document Name])
- Keep your answer focused and concise

ANSWER:`

// DocQAPrompt is the PromptTemplate instance the query pipeline formats
// with {context_str, query_str} before calling the LLM layer.
var DocQAPrompt = NewPromptTemplate(DocQAPromptTmpl, PromptTypeQuestionAnswer)
